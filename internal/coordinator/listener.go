package coordinator

import "github.com/rs/zerolog/log"

// Listener receives the application level outcomes of terminal traffic.
// Calls are made from the worker pool, never from the transport callback.
type Listener interface {
	OnFaceRecognized(orgID, userID, imageData string)
	OnFaceRegisterSuccess(orgID, userID string)
	OnFaceRegisterFailed(orgID, userID string)
}

// NopListener discards every notification.
type NopListener struct{}

func (NopListener) OnFaceRecognized(string, string, string) {}
func (NopListener) OnFaceRegisterSuccess(string, string)    {}
func (NopListener) OnFaceRegisterFailed(string, string)     {}

// LogListener logs every notification.
type LogListener struct{}

func (LogListener) OnFaceRecognized(orgID, userID, imageData string) {
	log.Info().Str("org_id", orgID).Str("user_id", userID).Int("image_bytes", len(imageData)).Msg("Face recognized")
}

func (LogListener) OnFaceRegisterSuccess(orgID, userID string) {
	log.Info().Str("org_id", orgID).Str("user_id", userID).Msg("Face registered")
}

func (LogListener) OnFaceRegisterFailed(orgID, userID string) {
	log.Warn().Str("org_id", orgID).Str("user_id", userID).Msg("Face registration failed")
}
