package tracking

// Gains are the proportional, integral and derivative weights for one axis
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// Per-axis gains. These are part of the control law, not configuration.
var (
	GainsX        = Gains{Kp: 0.04, Ki: 0, Kd: 0.04} // horizontal -> roll
	GainsY        = Gains{Kp: 0.25, Ki: 0, Kd: 0.25} // vertical -> thrust
	GainsDistance = Gains{Kp: 0.12, Ki: 0, Kd: 0.16} // size -> pitch
	GainsYaw      = Gains{Kp: 0.13, Ki: 0, Kd: 0.13}
)

// PID computes one controller output from the current and previous error.
//
// The integral term is a two-point sum of the current and previous error, not
// an accumulated history. prevOutput is accepted so every axis is called the
// same way, but it does not contribute to the result.
func PID(prevOutput, err, prevErr float64, g Gains) float64 {
	_ = prevOutput
	return g.Kp*err + g.Ki*(err+prevErr) + g.Kd*(err-prevErr)
}
