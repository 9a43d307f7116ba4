package transcribe

import (
	"encoding/json"
	"strings"
	"text/template"
)

// driverScript loads the model and writes model.transcribe's result dict to
// the result path. Converter variables are set before the engine is imported
// because the engine reads them at import time.
var driverScript = template.Must(template.New("driver").Funcs(template.FuncMap{
	"py":     pyString,
	"pyopt":  pyOptional,
	"pybool": pyBool,
}).Parse(`import json
import os
import sys
import time

converter = {{py .ConverterPath}}
if converter:
    for key in ("FFMPEG_PATH", "FFMPEG_BINARY", "IMAGEIO_FFMPEG_EXE", "WHISPER_FFMPEG_BINARY", "FFMPEG"):
        os.environ[key] = converter
    os.environ["PATH"] = os.path.dirname(converter) + os.pathsep + os.environ.get("PATH", "")

import whisper

device = {{py .Device}}
if device == "cuda":
    import torch
    if not torch.cuda.is_available():
        device = "cpu"
print("device: " + device, file=sys.stderr)

started = time.time()
source = {{py .ModelSource}}
if source and os.path.exists(source):
    model = whisper.load_model(source, device=device)
else:
    model = whisper.load_model({{py .Model}}, device=device)
print("model loaded in %.2fs" % (time.time() - started), file=sys.stderr)

started = time.time()
result = model.transcribe(
    {{py .AudioPath}},
    language={{pyopt .Language}},
    task={{py .Task}},
    word_timestamps={{pybool .WordTimestamps}},
    verbose=False,
    fp16={{pybool .HalfPrecision}},
)
print("transcribed in %.2fs" % (time.time() - started), file=sys.stderr)

with open({{py .ResultPath}}, "w", encoding="utf-8") as f:
    json.dump(result, f, ensure_ascii=False)
`))

// RenderScript renders the driver script for req.
func RenderScript(req Request) (string, error) {
	var b strings.Builder
	if err := driverScript.Execute(&b, req); err != nil {
		return "", err
	}
	return b.String(), nil
}

// pyString renders s as a Python string literal. A JSON string is a valid
// Python literal with identical meaning, including on Windows paths.
func pyString(s any) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func pyOptional(s string) string {
	if s == "" {
		return "None"
	}
	return pyString(s)
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
