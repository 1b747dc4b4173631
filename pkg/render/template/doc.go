// Package template defines the template engine seam used to turn widget and
// form view data into markup. The gotemplate subpackage provides the default
// pongo2-backed engine.
package template
