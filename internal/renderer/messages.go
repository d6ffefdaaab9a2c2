package renderer

// ReadySignal is broadcast by a worker once it accepts requests.
type ReadySignal struct {
	Worker string
}

// WorkerStopped is broadcast after a worker context exits.
type WorkerStopped struct {
	Worker string
}

type compressRequest struct {
	Source   string
	MaxWidth int
	Quality  float64
}

type compressResponse struct {
	DataURL      string
	DecodeFailed bool
	Detail       string
}

type pingRequest struct{}

type pong struct{}
