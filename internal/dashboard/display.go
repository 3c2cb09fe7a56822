package dashboard

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tokyotraffic/tokyotraffic/internal/ridership"
	"github.com/tokyotraffic/tokyotraffic/internal/ridership/feed"
)

// ErrorDisplay shows the message of a failed cycle to the user. The
// controller calls it exactly once per failed cycle.
type ErrorDisplay interface {
	ShowError(message string)
}

// ErrorDisplayFunc adapts a function to ErrorDisplay.
type ErrorDisplayFunc func(message string)

// ShowError implements ErrorDisplay.
func (f ErrorDisplayFunc) ShowError(message string) {
	f(message)
}

// asLoadError classifies a cycle error. Builder failures count as parse
// errors of the document they came from.
func asLoadError(err error) *feed.LoadError {
	var loadErr *feed.LoadError
	if errors.As(err, &loadErr) {
		return loadErr
	}

	var buildErr *ridership.BuildError
	if errors.As(err, &buildErr) {
		src := feed.SourceAnalysis
		if strings.HasPrefix(buildErr.Field, "stations") {
			src = feed.SourceStations
		}
		return feed.NewParseError(src, err)
	}

	return &feed.LoadError{Kind: feed.KindNetwork, Source: feed.SourceAnalysis, Err: err}
}

// errorMessage is the user-facing text for a failed cycle; analysis and
// station failures read differently.
func errorMessage(loadErr *feed.LoadError) string {
	doc := "analysis"
	if loadErr.Source == feed.SourceStations {
		doc = "station"
	}

	switch {
	case loadErr.Kind == feed.KindParse:
		return fmt.Sprintf("Failed to parse %s data", doc)
	case loadErr.StatusCode != 0:
		return fmt.Sprintf("Failed to load %s data: %d", doc, loadErr.StatusCode)
	default:
		return fmt.Sprintf("Failed to load %s data: upstream unreachable", doc)
	}
}
