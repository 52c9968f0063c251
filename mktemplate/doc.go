/*
Command mktemplate compiles fit template source files to binary templates.

A template source is YAML describing the Gaussian components, the
background polynomial, the wavelength window and a parinfo entry for every
parameter:

	n_gauss: 2
	n_poly: 1
	line_ids: [fe_12_195_119, fe_12_195_179]
	wmin: 195.0
	wmax: 195.3
	parinfo:
	  - {value: 1000, limited: [true, false]}
	  - {value: 195.119, limited: [true, true], limits: [195.09, 195.15]}
	  - {value: 0.03, limited: [true, true], limits: [0.01, 0.1]}
	  - {value: 100, limited: [true, false]}
	  - {value: 195.179, tied: "p[1]+0.06"}
	  - {value: 0.03, limited: [true, true], limits: [0.01, 0.1]}
	  - {value: 50}

Parameters are peak, centroid and width for each Gaussian in order,
followed by the background coefficients, constant term first.  A tie
expression may use p[i], numbers, + - * / and parentheses, and may refer
only to parameters that are not themselves tied.  Every untied width
must be positive, and a free width needs a positive lower limit.

Usage

	mktemplate [-o dir] <source.template.yaml> ...
	mktemplate -v

Each source is validated and written to dir, default the current
directory, as {line-id}.{n}c.template.gob.  Any invalid source stops the
program with a message naming the file.

-------------
Public domain.
*/
package main
