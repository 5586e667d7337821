package config

import "github.com/tritonminingco/deepseaguard/internal/models"

// Band is an inclusive warning or critical range for one parameter.
type Band struct {
	Warning models.Limits
	Critical models.Limits
}

// EnvironmentalThresholds is the compiled-in parameter band table the
// Threshold Evaluator checks every ingested telemetry point against.
// Values are carried over unchanged from the reference service's
// thresholds table.
var EnvironmentalThresholds = map[string]Band{
	"temperature_c": {
		Warning:  models.Limits{Min: 1.5, Max: 2.5},
		Critical: models.Limits{Min: 1.0, Max: 3.0},
	},
	"turbidity": {
		Warning:  models.Limits{Min: 0.05, Max: 0.25},
		Critical: models.Limits{Min: 0.0, Max: 0.3},
	},
}
