// Package pipeerr implements the pipeline's error taxonomy: a stable,
// client-dispatchable error code plus a coarse kind, per spec §7.
package pipeerr

import "fmt"

// Kind classifies an error for propagation policy purposes.
type Kind int

const (
	KindUser Kind = iota
	KindServer
	KindNotFound
)

// Code is a stable, client-dispatchable error code string.
type Code string

const (
	CodeAlreadyRegistered        Code = "INPUT_STREAM_ALREADY_REGISTERED"
	CodeOutputAlreadyRegistered  Code = "OUTPUT_STREAM_ALREADY_REGISTERED"
	CodeNotFound                 Code = "STREAM_NOT_FOUND"
	CodeStillInUse               Code = "STREAM_STILL_IN_USE"
	CodeUnsupportedCodec         Code = "UNSUPPORTED_CODEC"
	CodeUnsupportedResolution    Code = "UNSUPPORTED_RESOLUTION"
	CodeNoVideoCodecNegotiated   Code = "NO_VIDEO_CODEC_NEGOTIATED"
	CodeNoAudioCodecNegotiated   Code = "NO_AUDIO_CODEC_NEGOTIATED"
	CodeNoVideoOrAudioForOutput  Code = "NO_VIDEO_OR_AUDIO_FOR_OUTPUT"
	CodeDecoderInit              Code = "DECODER_INIT_FAILED"
	CodeEncoderInit              Code = "ENCODER_INIT_FAILED"
	CodePortInUse                Code = "PORT_IN_USE"
	CodeAllPortsInUse            Code = "ALL_PORTS_IN_USE"
	CodeWhipInitTimeout          Code = "WHIP_INIT_TIMEOUT"
	CodeWhipInitFailed           Code = "WHIP_INIT_FAILED"
	CodeFfmpeg                   Code = "FFMPEG_ERROR"
	CodeVulkan                   Code = "WGPU_VALIDATION_ERROR"
	CodeCorruptPacket            Code = "CORRUPT_PACKET"
	CodeDiscontinuityDetected    Code = "DISCONTINUITY_DETECTED"
)

// kindFor maps each code to its propagation kind, per spec §7's
// taxonomy (user error / server error / not-found).
var kindFor = map[Code]Kind{
	CodeAlreadyRegistered:       KindUser,
	CodeOutputAlreadyRegistered: KindUser,
	CodeNotFound:                KindNotFound,
	CodeStillInUse:              KindUser,
	CodeUnsupportedCodec:        KindUser,
	CodeUnsupportedResolution:   KindUser,
	CodeNoVideoCodecNegotiated:  KindUser,
	CodeNoAudioCodecNegotiated:  KindUser,
	CodeNoVideoOrAudioForOutput: KindUser,
	CodeDecoderInit:             KindServer,
	CodeEncoderInit:             KindServer,
	CodePortInUse:               KindServer,
	CodeAllPortsInUse:           KindServer,
	CodeWhipInitTimeout:         KindServer,
	CodeWhipInitFailed:          KindServer,
	CodeFfmpeg:                  KindServer,
	CodeVulkan:                  KindServer,
}

// Error is the control-plane error type: a stable code, its kind, and
// the wrapped underlying cause (if any).
type Error struct {
	Code Code
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error for the given code, inferring its kind from the
// taxonomy table above.
func New(code Code, err error) *Error {
	k, ok := kindFor[code]
	if !ok {
		k = KindServer
	}
	return &Error{Code: code, Kind: k, Err: err}
}

// NotFound builds a NotFound-kind error for an unknown input/output id.
func NotFound(id string) *Error {
	return New(CodeNotFound, fmt.Errorf("id %q not registered", id))
}

// AlreadyRegistered builds a user error for a duplicate registration.
func AlreadyRegistered(id string) *Error {
	return New(CodeAlreadyRegistered, fmt.Errorf("id %q already registered", id))
}
