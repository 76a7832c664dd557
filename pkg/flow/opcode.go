package flow

import "strconv"

// Opcode identifies what a node does. The set below is closed: a document
// referencing any other value fails validation, and the dispatcher rejects
// it at execution time as well.
type Opcode int

const (
	OpPlayAudio       Opcode = 10  // play an audio file
	OpPlayRecorded    Opcode = 11  // play a previously recorded file
	OpCollectDTMF     Opcode = 20  // collect DTMF digits
	OpPlayAndCollect  Opcode = 30  // play audio then collect DTMF
	OpMenu            Opcode = 31  // play a menu and collect a choice
	OpRecord          Opcode = 40  // record caller audio
	OpReadDigits      Opcode = 50  // read a number sequence to the caller
	OpTransferExt     Opcode = 100 // transfer to an extension
	OpEnqueue         Opcode = 101 // enqueue into the call center
	OpCollectInput    Opcode = 105 // collect multi-digit input
	OpBlindTransfer   Opcode = 107 // blind transfer
	OpAttendedXfer    Opcode = 108 // attended transfer
	OpHTTPGet         Opcode = 111 // web API GET
	OpHTTPPost        Opcode = 112 // web API POST
	OpCondition       Opcode = 120 // conditional branch
	OpHangup          Opcode = 200 // hang up
	OpSpeak           Opcode = 330 // text-to-speech
	OpSpeakAndCollect Opcode = 331 // text-to-speech with input collection
	OpRecordOptions   Opcode = 341 // record with type options
)

// Handler family names. The dispatcher groups opcodes into families and
// routes each family to one handler implementation.
const (
	FamilyAudio       = "audio"
	FamilyInput       = "input"
	FamilyRecording   = "recording"
	FamilyTransfer    = "transfer"
	FamilyAPI         = "api"
	FamilyLogic       = "logic"
	FamilyTTS         = "tts"
	FamilyTermination = "termination"
)

// families is the authoritative opcode → family mapping.
var families = map[Opcode]string{
	OpPlayAudio:       FamilyAudio,
	OpPlayRecorded:    FamilyAudio,
	OpPlayAndCollect:  FamilyAudio,
	OpMenu:            FamilyAudio,
	OpReadDigits:      FamilyAudio,
	OpCollectDTMF:     FamilyInput,
	OpCollectInput:    FamilyInput,
	OpRecord:          FamilyRecording,
	OpRecordOptions:   FamilyRecording,
	OpTransferExt:     FamilyTransfer,
	OpEnqueue:         FamilyTransfer,
	OpBlindTransfer:   FamilyTransfer,
	OpAttendedXfer:    FamilyTransfer,
	OpHTTPGet:         FamilyAPI,
	OpHTTPPost:        FamilyAPI,
	OpCondition:       FamilyLogic,
	OpSpeak:           FamilyTTS,
	OpSpeakAndCollect: FamilyTTS,
	OpHangup:          FamilyTermination,
}

// Family returns the handler family name for the opcode, or "" when the
// opcode is not part of the supported set.
func (o Opcode) Family() string {
	return families[o]
}

// IsValid reports whether the opcode belongs to the supported set.
func (o Opcode) IsValid() bool {
	_, ok := families[o]
	return ok
}

// String returns the decimal opcode value.
func (o Opcode) String() string {
	return strconv.Itoa(int(o))
}

// Opcodes returns every supported opcode. The slice is freshly allocated on
// each call; callers may modify it.
func Opcodes() []Opcode {
	out := make([]Opcode, 0, len(families))
	for op := range families {
		out = append(out, op)
	}
	return out
}
