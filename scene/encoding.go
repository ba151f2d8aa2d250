package scene

import (
	"encoding/json"
	"fmt"

	"github.com/gogpu/collage"
)

// Persisted document shape. Cross-references are plain integers matching
// object ids; derived GPU content (textures, distance fields, glyph
// buffers) is never written and is rebuilt after load.

type documentJSON struct {
	Programs []programJSON `json:"programs"`
	Fonts    []string      `json:"fonts"`
	Objects  []objectJSON  `json:"objects"`
}

type programJSON struct {
	Name           string `json:"name"`
	FragmentSource string `json:"fragmentShaderSource"`
}

type objectJSON struct {
	Name string          `json:"name"`
	ID   ID              `json:"id"`
	Data json.RawMessage `json:"data"`
}

type fileImageJSON struct {
	Type string `json:"type"`
	Path string `json:"path"`
}

type childJSON struct {
	Object    ID         `json:"object"`
	Placement [6]float64 `json:"placement"`
}

type compositionJSON struct {
	Type         string      `json:"type"`
	Width        int         `json:"width"`
	Height       int         `json:"height"`
	DebugOverlay bool        `json:"debugOverlay"`
	Children     []childJSON `json:"children"`
}

type bindingJSON struct {
	Name  string           `json:"name"`
	Value bindingValueJSON `json:"value"`
}

type bindingValueJSON struct {
	Type   string    `json:"type"`
	Object ID        `json:"object,omitempty"`
	Value  []float64 `json:"value,omitempty"`
	Int    int       `json:"int,omitempty"`
}

type shaderJSON struct {
	Type         string        `json:"type"`
	Program      ProgramID     `json:"program"`
	PrimaryInput int           `json:"primaryInput"`
	Bindings     []bindingJSON `json:"bindings"`
}

type pathJSON struct {
	Type    string       `json:"type"`
	Display ID           `json:"display"`
	Points  [][2]float64 `json:"points"`
}

type generatedMaskJSON struct {
	Type   string `json:"type"`
	Source ID     `json:"source"`
}

type drawingJSON struct {
	Type     string         `json:"type"`
	Display  ID             `json:"display"`
	Brush    ProgramID      `json:"brush"`
	Bindings []bindingJSON  `json:"bindings"`
	Strokes  [][][2]float64 `json:"strokes"`
}

type textJSON struct {
	Type    string `json:"type"`
	Font    FontID `json:"font"`
	Content string `json:"content"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

const (
	typeFileImage     = "fileImage"
	typeComposition   = "composition"
	typeShader        = "shader"
	typePath          = "path"
	typeGeneratedMask = "generatedMask"
	typeDrawing       = "drawing"
	typeText          = "text"
)

// Encode serializes the document. The output round-trips through Decode
// up to derived content, which Rebuild restores.
func Encode(d *Document) ([]byte, error) {
	out := documentJSON{
		Programs: make([]programJSON, 0, d.Programs.Len()),
		Fonts:    make([]string, 0, d.Fonts.Len()),
		Objects:  make([]objectJSON, 0, d.Objects.Len()),
	}
	for i := 0; i < d.Programs.Len(); i++ {
		spec, _ := d.Programs.Spec(ProgramID(i))
		out.Programs = append(out.Programs, programJSON{
			Name:           spec.Name,
			FragmentSource: spec.FragmentSource,
		})
	}
	for i := 0; i < d.Fonts.Len(); i++ {
		path, _ := d.Fonts.Path(FontID(i))
		out.Fonts = append(out.Fonts, path)
	}
	for _, id := range d.Objects.IDs() {
		obj, _ := d.Objects.Get(id)
		raw, err := encodeData(obj.Data)
		if err != nil {
			return nil, fmt.Errorf("scene: encode object %d (%s): %w", id, obj.Name, err)
		}
		out.Objects = append(out.Objects, objectJSON{Name: obj.Name, ID: id, Data: raw})
	}
	return json.MarshalIndent(out, "", "  ")
}

func encodeData(data Data) (json.RawMessage, error) {
	switch d := data.(type) {
	case *FileImage:
		return json.Marshal(fileImageJSON{Type: typeFileImage, Path: d.Path})
	case *Composition:
		children := make([]childJSON, len(d.Children))
		for i, ch := range d.Children {
			children[i] = childJSON{Object: ch.Object, Placement: encodeTransform(ch.Placement)}
		}
		return json.Marshal(compositionJSON{
			Type:         typeComposition,
			Width:        d.Width,
			Height:       d.Height,
			DebugOverlay: d.DebugOverlay,
			Children:     children,
		})
	case *Shader:
		return json.Marshal(shaderJSON{
			Type:         typeShader,
			Program:      d.Program,
			PrimaryInput: d.PrimaryInput,
			Bindings:     encodeBindings(d.Bindings),
		})
	case *Path:
		return json.Marshal(pathJSON{
			Type:    typePath,
			Display: d.Display,
			Points:  encodePoints(d.Points),
		})
	case *GeneratedMask:
		return json.Marshal(generatedMaskJSON{Type: typeGeneratedMask, Source: d.Source})
	case *Drawing:
		strokes := make([][][2]float64, len(d.Strokes))
		for i, s := range d.Strokes {
			strokes[i] = encodePoints(s)
		}
		return json.Marshal(drawingJSON{
			Type:     typeDrawing,
			Display:  d.Display,
			Brush:    d.Brush,
			Bindings: encodeBindings(d.Bindings),
			Strokes:  strokes,
		})
	case *Text:
		return json.Marshal(textJSON{
			Type:    typeText,
			Font:    d.Font,
			Content: d.Content,
			Width:   d.Width,
			Height:  d.Height,
		})
	default:
		return nil, fmt.Errorf("unknown variant %T", data)
	}
}

func encodeTransform(t collage.Transform) [6]float64 {
	return [6]float64{t.A, t.B, t.C, t.D, t.E, t.F}
}

func encodePoints(pts []collage.Point) [][2]float64 {
	out := make([][2]float64, len(pts))
	for i, p := range pts {
		out[i] = [2]float64{p.X, p.Y}
	}
	return out
}

func encodeBindings(bindings []Binding) []bindingJSON {
	out := make([]bindingJSON, len(bindings))
	for i, b := range bindings {
		out[i] = bindingJSON{Name: b.Name, Value: encodeBindingValue(b.Value)}
	}
	return out
}

func encodeBindingValue(v BindingValue) bindingValueJSON {
	switch val := v.(type) {
	case ImageRef:
		return bindingValueJSON{Type: "image", Object: val.Object}
	case FloatValue:
		return bindingValueJSON{Type: "float", Value: []float64{float64(val)}}
	case Float2Value:
		return bindingValueJSON{Type: "float2", Value: val[:]}
	case Float3Value:
		return bindingValueJSON{Type: "float3", Value: val[:]}
	case IntValue:
		return bindingValueJSON{Type: "int", Int: int(val)}
	default:
		return bindingValueJSON{}
	}
}
