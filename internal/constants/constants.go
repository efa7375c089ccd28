// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Normalized signature tensor shape
const (
	// ImageHeight is the height of every normalized signature tensor
	ImageHeight = 155

	// ImageWidth is the width of every normalized signature tensor
	ImageWidth = 220

	// ImageChannels is the trailing channel dimension (grayscale)
	ImageChannels = 1
)

// Decision policy constants
const (
	// DefaultThreshold is the maximum model distance for a reference to vote "genuine"
	DefaultThreshold = 0.35

	// RecognitionScale multiplies raw distances before the softmax
	RecognitionScale = 10.0

	// ContrastiveMargin is the distance impostor pairs are pushed beyond
	ContrastiveMargin = 1.0
)

// Training constants
const (
	// BatchFraction is the share of room participants drawn into one batch
	BatchFraction = 0.75

	// IterationsPerBatch multiplies the batch size to get the number of training steps
	IterationsPerBatch = 3

	// MinParticipants is the smallest room that can be trained
	MinParticipants = 2
)

// Model artifact naming
const (
	// BaselineModelName is the shared untrained model every new room starts with
	BaselineModelName = "signet_model"

	// RoomModelPrefix prefixes the per-room trained model name
	RoomModelPrefix = "model_room_"

	// WeightsExtension is the file extension of persisted weights
	WeightsExtension = ".weights"
)
