// Package renderer owns the ephemeral rendering worker used for image
// transcoding.
//
// The worker is a process-wide singleton context hosted by WorkerHost. It is
// created lazily, announces itself with a ReadySignal broadcast on the runtime
// bus, and is torn down by the host after an idle period. Controller drives
// the Uninitialized, Creating and Ready states so that concurrent callers share
// one creation attempt and a duplicate creation is treated as success.
package renderer
