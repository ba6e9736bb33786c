package ports

// DistanceScale converts a source redshift into the scalar factor K(z) used
// to turn a robust time-vs-energy slope into an energy-scale estimate
// (E_QG = K(z) / |slope|). Cosmological distance computation is external; the
// engine treats the factor as opaque.
type DistanceScale interface {
	Factor(redshift float64) float64
}

// DistanceScaleFunc adapts a plain function to the DistanceScale port
type DistanceScaleFunc func(redshift float64) float64

func (f DistanceScaleFunc) Factor(redshift float64) float64 {
	return f(redshift)
}
