// Package spectral, conversions generally useful for line profile fits.
package spectral

import "math"

// SpeedOfLight in km/s.
const SpeedOfLight = 299792.458

// fwhm of exp(-(x/w)²) in units of w
var fwhmPerWidth = 2 * math.Sqrt(math.Ln2)

// Velocity returns the Doppler velocity in km/s of a line observed at
// centroid with rest wavelength rest.  Positive is a red shift.
func Velocity(centroid, rest float64) float64 {
	return (centroid - rest) / rest * SpeedOfLight
}

// VelocityErr converts a centroid uncertainty to a velocity uncertainty.
func VelocityErr(errCentroid, rest float64) float64 {
	return math.Abs(errCentroid / rest * SpeedOfLight)
}

// FWHM is the full width at half maximum of a Gaussian term
// peak*exp(-((λ-c)/width)²).
func FWHM(width float64) float64 {
	return fwhmPerWidth * math.Abs(width)
}

// Sigma converts width to the standard deviation of the same Gaussian,
// width / √2.
func Sigma(width float64) float64 {
	return math.Abs(width) / math.Sqrt2
}
