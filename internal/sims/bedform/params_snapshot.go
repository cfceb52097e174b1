package bedform

import (
	"strconv"

	"bedform/internal/core"
)

// Parameters exposes the grouped tunables for HUD and diagnostic surfaces.
func (s *Simulator) Parameters() core.ParameterSnapshot {
	params := s.cfg.Params
	groups := []core.ParameterGroup{
		{
			Name: "Grid",
			Params: []core.Parameter{
				intParam("w", "Width", s.cfg.Width),
				intParam("h", "Height", s.cfg.Height),
				int64Param("seed", "Seed", s.cfg.Seed),
				intParam("workers", "Workers", s.cfg.Workers),
			},
		},
		{
			Name: "Transport",
			Params: []core.Parameter{
				floatParam("d", "Diffusion rate", params.D),
				floatParam("q", "Saltation flux", params.Q),
				floatParam("l0", "Base hop length", params.L0),
				floatParam("b", "Hop slope sensitivity", params.B),
				boolParam("legacy_diagonals", "Legacy diagonal stencil", params.LegacyDiagonals),
			},
		},
	}
	return core.ParameterSnapshot{Groups: groups}
}

func intParam(key, label string, value int) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeInt,
		Value: strconv.Itoa(value),
	}
}

func int64Param(key, label string, value int64) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeInt,
		Value: strconv.FormatInt(value, 10),
	}
}

func floatParam(key, label string, value float64) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeFloat,
		Value: strconv.FormatFloat(value, 'f', -1, 64),
	}
}

func boolParam(key, label string, value bool) core.Parameter {
	return core.Parameter{
		Key:   key,
		Label: label,
		Type:  core.ParamTypeBool,
		Value: strconv.FormatBool(value),
	}
}
