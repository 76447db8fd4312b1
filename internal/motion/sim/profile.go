package sim

import "math"

// profile is the trapezoidal velocity profile of one leg: accelerate from
// rest to the coast speed, coast, then decelerate to rest at the target.
// The coast speed is capped at sqrt(0.5*d*a) so the ramps never cover more
// than half the distance. Without acceleration the leg runs at constant
// speed, and without speed it never arrives.
type profile struct {
	distance float64
	accel    float64
	coast    float64
	rampTime float64
	rampDist float64
	total    float64
}

func newProfile(distance, speed, accel float64) profile {
	p := profile{distance: distance, coast: speed}
	switch {
	case distance <= 0:
		p.total = 0
	case speed <= 0:
		p.coast = 0
		p.total = math.Inf(1)
	case accel <= 0:
		p.total = distance / speed
	default:
		p.accel = accel
		p.coast = min(speed, math.Sqrt(0.5*distance*accel))
		p.rampTime = p.coast / accel
		p.rampDist = 0.5 * accel * p.rampTime * p.rampTime
		p.total = 2*p.rampTime + (distance-2*p.rampDist)/p.coast
	}
	return p
}

// travelled returns the distance covered t seconds into the leg.
func (p profile) travelled(t float64) float64 {
	switch {
	case t <= 0:
		return 0
	case t >= p.total:
		return p.distance
	case p.accel <= 0:
		return p.coast * t
	case t < p.rampTime:
		return 0.5 * p.accel * t * t
	case t < p.total-p.rampTime:
		return p.rampDist + p.coast*(t-p.rampTime)
	default:
		r := p.total - t
		return p.distance - 0.5*p.accel*r*r
	}
}
