package render

import (
	"math"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount formats n with thousands separators ("753,000").
func FormatCount(n int64) string {
	return printer.Sprintf("%d", n)
}

// FormatKilo formats n as rounded thousands ("753k").
func FormatKilo(n int64) string {
	return printer.Sprintf("%dk", int64(math.Round(float64(n)/1000)))
}

// ChartLabel drops the " Station" suffix used by feed names.
func ChartLabel(name string) string {
	return strings.Replace(name, " Station", "", 1)
}

// ShortName is the first word of a station name.
func ShortName(name string) string {
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return name
}

// Percentages splits 100 across values in proportion, using the largest
// remainder method so the parts always sum to exactly 100. All-zero input
// yields all zeros.
func Percentages(values []int64) []int {
	out := make([]int, len(values))

	var total float64
	for _, v := range values {
		if v > 0 {
			total += float64(v)
		}
	}
	if total == 0 {
		return out
	}

	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, len(values))
	assigned := 0
	for i, v := range values {
		if v < 0 {
			v = 0
		}
		exact := float64(v) / total * 100
		out[i] = int(math.Floor(exact))
		assigned += out[i]
		rems[i] = rem{idx: i, frac: exact - math.Floor(exact)}
	}

	sort.SliceStable(rems, func(a, b int) bool {
		return rems[a].frac > rems[b].frac
	})
	for i := 0; assigned < 100 && i < len(rems); i++ {
		out[rems[i].idx]++
		assigned++
	}
	return out
}

// share is value as a percentage of total with one decimal.
func share(value, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(value)/float64(total)*1000) / 10
}
