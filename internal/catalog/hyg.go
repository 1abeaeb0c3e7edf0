package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/udisondev/starnav/internal/geom"
)

// Sol is the canonical Sun entry prepended to every HYG import.
var Sol = Star{
	Name: "Sol",
	Pos:  geom.Vec3{},
	Info: Info{Proper: "Sol", Dist: 0.0000048481, Mag: -26.74, Spect: "G2V", CI: 0.656},
}

var hygRequired = []string{"id", "proper", "dist", "mag", "spect", "ci", "x", "y", "z",
	"bayer", "flam", "con", "gl", "hd", "hip"}

// ReadHYG parses an HYG database CSV export.
//
// Rows missing dist, mag, ci or a coordinate are skipped. The catalogue's own
// Sol row is replaced by Sol. Coordinates are remapped from the equatorial
// Z-up frame to Y-up (x' = x, y' = z, z' = -y). Display names follow
// proper > Bayer > Flamsteed > Gliese > HIP > HD > HYG id; names that collide
// get the HYG id appended.
func ReadHYG(r io.Reader) ([]Star, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading hyg header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.TrimSpace(h)] = i
	}
	for _, name := range hygRequired {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("hyg csv: missing column %q", name)
		}
	}

	stars := []Star{Sol}
	seen := map[string]struct{}{Sol.Name: {}}
	skipped := 0

	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading hyg line %d: %w", line, err)
		}
		field := func(name string) string {
			return strings.TrimSpace(rec[col[name]])
		}

		if field("proper") == "Sol" {
			continue
		}
		nums, ok := parseFloats(field("dist"), field("mag"), field("ci"), field("x"), field("y"), field("z"))
		if !ok {
			skipped++
			continue
		}

		st := Star{
			Name: hygDisplayName(field),
			Pos:  geom.Vec3{X: nums[3], Y: nums[5], Z: -nums[4]},
			Info: Info{
				Proper: field("proper"),
				Dist:   nums[0],
				Mag:    nums[1],
				Spect:  field("spect"),
				CI:     nums[2],
			},
		}
		if _, dup := seen[st.Name]; dup {
			st.Name = fmt.Sprintf("%s [HYG %s]", st.Name, field("id"))
		}
		seen[st.Name] = struct{}{}
		stars = append(stars, st)
	}

	slog.Debug("hyg catalogue parsed", "stars", len(stars), "skipped", skipped)
	return stars, nil
}

func hygDisplayName(field func(string) string) string {
	con := field("con")
	switch {
	case field("proper") != "":
		return field("proper")
	case field("bayer") != "" && con != "":
		return field("bayer") + " " + con
	case field("flam") != "" && con != "":
		if n, err := strconv.ParseFloat(field("flam"), 64); err == nil {
			return strconv.Itoa(int(n)) + " " + con
		}
		return field("flam") + " " + con
	case field("gl") != "":
		return "Gl " + field("gl")
	case field("hip") != "":
		return "HIP " + trimIntString(field("hip"))
	case field("hd") != "":
		return "HD " + trimIntString(field("hd"))
	default:
		return "HYG " + field("id")
	}
}

// trimIntString turns "11767.0" into "11767".
func trimIntString(s string) string {
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return strconv.FormatInt(int64(n), 10)
	}
	return s
}

func parseFloats(vals ...string) ([]float64, bool) {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if v == "" {
			return nil, false
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}
