/*
Command specfit fits Gaussian line profiles to every spectrum of a
spectral cube.

Contents

	Program overview
	Command line usage
	Configuration
	File formats
	Algorithm outline

Program overview

Input is a cube of calibrated spectra addressed by slit position y and
raster step x, and a fit template.  The template names the components of
the model (some number of Gaussian lines on a polynomial background),
initial values and constraints for every parameter, and the wavelength
window to fit.  Output is a result file holding, for every pixel, a fit
status, chi-square, fitted parameters with 1-sigma uncertainties, and the
integrated intensity of each line.

Command line usage

	specfit template <source.template.yaml> [outdir]
	specfit fit <cube> <template> [-o result] [--fits file] [--workers n]
	specfit info <result>
	specfit export <result> <fits>
	specfit --version

The companion commands mktemplate, fitstat and synthcube compile templates
in bulk, summarize results, and generate synthetic cubes.

Configuration

Settings come from built in defaults, then an optional YAML file given
with --config, then environment variables, then flags.

	workers      max, serial, or a count        SPECFIT_WORKERS
	granularity  step or pixel                  SPECFIT_GRANULARITY
	max_iter     solver iteration limit         SPECFIT_MAX_ITER
	ftol         relative chi-square change     SPECFIT_FTOL
	xtol         relative step size             SPECFIT_XTOL
	gtol         gradient                       SPECFIT_GTOL
	log_level    debug, info, warn, error       SPECFIT_LOG_LEVEL

With workers max, fitting uses one goroutine per usable CPU.  If only one
CPU is usable the run is serial and a warning is logged.

File formats

Cube, template and result files are gob streams beginning with a tag
string naming the kind of file and its version.  A result file carries a
copy of its template, so it can be interpreted without any other file.
The export command writes the result as FITS, an integrated intensity
image followed by PARAMS, PERROR, CHI2 and STATUS extensions.

Algorithm outline

For each pixel, samples outside the template window, missing samples
(intensity -100, NaN or Inf) and samples without a positive uncertainty
are excluded.  A pixel with no usable sample is skipped.  Peak and
background initial values are scaled by the ratio of the data maximum to
the initial model maximum.  A Levenberg-Marquardt iteration then
minimizes chi-square over the free parameters, substituting tied
parameters from their expressions and projecting trial steps onto the
parameter limits.  Uncertainties are the square roots of the covariance
diagonal scaled by the square root of reduced chi-square.  The integrated
intensity of a line peak*exp(-((λ-c)/w)²) is peak*|w|*√π.

Public domain.
*/
package main
