/*
Command fitstat summarizes a measurement over the cells of a fit result.

	Usage: fitstat [options] <result> [component]
	  -m=int: measurement, one of int, vel, wid, fwhm, chi2
	  -t=NaN: threshold; report the fraction of cells at or above it
	  -v=false: display version and copyright

The component is a Gaussian index, default 0.  Only cells holding fitted
values contribute; skipped and failed cells are counted separately.
Output gives the cell counts by status, then mean, standard deviation,
quartiles and extremes of the measurement, and the error weighted mean
where uncertainties are available.

-------------
Public domain.
*/
package main
