package transcribe

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Device selects where the engine runs the model.
type Device string

const (
	DeviceCUDA Device = "cuda"
	DeviceCPU  Device = "cpu"
)

// TaskTranscribe keeps output in the spoken language. The engine's other
// task, "translate", would render everything in English.
const TaskTranscribe = "transcribe"

// Request is the full parameter set of one engine invocation. It carries no
// logic; the driver script is rendered from it verbatim.
type Request struct {
	AudioPath      string // mono 16 kHz PCM WAV
	Model          string
	Language       string // ISO 639-1 code; empty lets the engine detect it
	Task           string
	Device         Device
	ModelSource    string // local model file, or empty for an engine-managed fetch
	WordTimestamps bool
	HalfPrecision  bool
	ConverterPath  string
	ResultPath     string // where the engine writes its JSON result
	ScriptPath     string // where the driver script is written
}

// NewRequest builds the request for transcribing audioPath. The result file is
// written next to the audio as <basename>.json and the script goes into
// scratchDir.
func NewRequest(caps Capabilities, audioPath, model, language, modelSource, scratchDir string) Request {
	base := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	return Request{
		AudioPath:      audioPath,
		Model:          model,
		Language:       language,
		Task:           TaskTranscribe,
		Device:         caps.Device(),
		ModelSource:    modelSource,
		WordTimestamps: true,
		HalfPrecision:  caps.Accelerated,
		ConverterPath:  caps.ConverterPath,
		ResultPath:     filepath.Join(filepath.Dir(audioPath), base+".json"),
		ScriptPath:     filepath.Join(scratchDir, fmt.Sprintf("whisper_wrapper_%s.py", uuid.NewString())),
	}
}
