// Package desktop implements the surface and capture capabilities by shelling
// out to desktop tooling (xdotool, ImageMagick import, grim, ...). Both
// commands come from the [capture] configuration section.
package desktop
