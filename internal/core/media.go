package core

// AudioConstraints mirrors the audio part of MediaStreamConstraints.
type AudioConstraints struct {
	EchoCancellation bool `json:"echoCancellation"`
	NoiseSuppression bool `json:"noiseSuppression"`
	AutoGainControl  bool `json:"autoGainControl"`
}

// MediaConstraints is the MediaStreamConstraints-shaped object handed to the peer transport.
type MediaConstraints struct {
	Audio AudioConstraints `json:"audio"`
	Video bool             `json:"video"`
}

// PeerHandle is one open audio channel.
type PeerHandle interface {
	PeerID() string
	// Close should stop all underlying media resources. Idempotent.
	Close()
}

// PeerTransport performs its own signalling out of band; the engine only
// hands it an identifier and the constraints.
type PeerTransport interface {
	Open(peerID string, c MediaConstraints) (PeerHandle, error)
}
