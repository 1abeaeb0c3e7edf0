package catalog

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/udisondev/starnav/internal/geom"
)

// DefaultCI is used when a record carries no colour index.
const DefaultCI = 0.65

// jsonStar is one record of the flat stars.json export.
type jsonStar struct {
	Name   *string  `json:"name"`
	Proper *string  `json:"proper"`
	Dist   float64  `json:"dist"`
	Mag    float64  `json:"mag"`
	Spect  *string  `json:"spect"`
	CI     *float64 `json:"ci"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Z      *float64 `json:"z"`
}

// ReadJSON decodes a stars.json array. name, x, y and z are required on every
// record; a missing ci falls back to DefaultCI.
func ReadJSON(r io.Reader) ([]Star, error) {
	var raw []jsonStar
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decoding star json: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrEmptySet
	}

	stars := make([]Star, 0, len(raw))
	for i, rs := range raw {
		if rs.Name == nil || rs.X == nil || rs.Y == nil || rs.Z == nil {
			return nil, fmt.Errorf("star record #%d: missing required field (name, x, y, z)", i)
		}
		st := Star{
			Name: *rs.Name,
			Pos:  geom.Vec3{X: *rs.X, Y: *rs.Y, Z: *rs.Z},
			Info: Info{Dist: rs.Dist, Mag: rs.Mag, CI: DefaultCI},
		}
		if rs.Proper != nil {
			st.Info.Proper = *rs.Proper
		}
		if rs.Spect != nil {
			st.Info.Spect = *rs.Spect
		}
		if rs.CI != nil {
			st.Info.CI = *rs.CI
		}
		stars = append(stars, st)
	}
	return stars, nil
}

// WriteJSON encodes stars in the flat stars.json layout.
func WriteJSON(w io.Writer, stars []Star) error {
	out := make([]map[string]any, 0, len(stars))
	for _, st := range stars {
		rec := map[string]any{
			"name": st.Name,
			"dist": st.Info.Dist,
			"mag":  st.Info.Mag,
			"ci":   st.Info.CI,
			"x":    st.Pos.X,
			"y":    st.Pos.Y,
			"z":    st.Pos.Z,
		}
		if st.Info.Proper != "" {
			rec["proper"] = st.Info.Proper
		}
		if st.Info.Spect != "" {
			rec["spect"] = st.Info.Spect
		}
		out = append(out, rec)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encoding star json: %w", err)
	}
	return nil
}
