package scene

import (
	"encoding/json"
	"fmt"

	"github.com/gogpu/collage"
)

// Decode reconstructs a document from its persisted form. Every
// cross-reference is validated and the loop guard runs over the full
// graph; derived GPU content is left empty until Rebuild runs against a
// device.
func Decode(data []byte) (*Document, error) {
	var in documentJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("scene: decode document: %w", err)
	}

	d := NewDocument()
	for _, p := range in.Programs {
		d.Programs.Add(ProgramSpec{Name: p.Name, FragmentSource: p.FragmentSource})
	}
	for _, path := range in.Fonts {
		d.Fonts.Add(path)
	}

	maxID := ID(0)
	for _, entry := range in.Objects {
		if entry.ID == NoObject {
			return nil, fmt.Errorf("scene: decode object %q: zero id", entry.Name)
		}
		if _, exists := d.Objects.byID[entry.ID]; exists {
			return nil, fmt.Errorf("scene: decode object %q: duplicate id %d", entry.Name, entry.ID)
		}
		payload, err := decodeData(entry.Data)
		if err != nil {
			return nil, fmt.Errorf("scene: decode object %d (%s): %w", entry.ID, entry.Name, err)
		}
		d.Objects.byID[entry.ID] = &Object{Name: entry.Name, Data: payload}
		d.Objects.order = append(d.Objects.order, entry.ID)
		if entry.ID > maxID {
			maxID = entry.ID
		}
	}
	d.Objects.nextID = maxID + 1

	// Saved files are not trusted to be well-formed graphs.
	for _, id := range d.Objects.order {
		if err := EnsureNoLoops(id, d.Objects); err != nil {
			return nil, err
		}
	}
	return d, nil
}

func decodeData(raw json.RawMessage) (Data, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}
	switch tag.Type {
	case typeFileImage:
		var v fileImageJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &FileImage{Path: v.Path}, nil
	case typeComposition:
		var v compositionJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		var children []Child
		for _, ch := range v.Children {
			children = append(children, Child{Object: ch.Object, Placement: decodeTransform(ch.Placement)})
		}
		return &Composition{
			Children:     children,
			Width:        v.Width,
			Height:       v.Height,
			DebugOverlay: v.DebugOverlay,
		}, nil
	case typeShader:
		var v shaderJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		bindings, err := decodeBindings(v.Bindings)
		if err != nil {
			return nil, err
		}
		return &Shader{Program: v.Program, PrimaryInput: v.PrimaryInput, Bindings: bindings}, nil
	case typePath:
		var v pathJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &Path{Points: decodePoints(v.Points), Display: v.Display, Selected: -1}, nil
	case typeGeneratedMask:
		var v generatedMaskJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &GeneratedMask{Source: v.Source}, nil
	case typeDrawing:
		var v drawingJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		bindings, err := decodeBindings(v.Bindings)
		if err != nil {
			return nil, err
		}
		var strokes [][]collage.Point
		for _, s := range v.Strokes {
			strokes = append(strokes, decodePoints(s))
		}
		return &Drawing{Display: v.Display, Brush: v.Brush, Bindings: bindings, Strokes: strokes}, nil
	case typeText:
		var v textJSON
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, err
		}
		return &Text{Font: v.Font, Content: v.Content, Width: v.Width, Height: v.Height}, nil
	default:
		return nil, fmt.Errorf("unknown variant %q", tag.Type)
	}
}

func decodeTransform(c [6]float64) collage.Transform {
	return collage.Transform{A: c[0], B: c[1], C: c[2], D: c[3], E: c[4], F: c[5]}
}

func decodePoints(pts [][2]float64) []collage.Point {
	if len(pts) == 0 {
		return nil
	}
	out := make([]collage.Point, len(pts))
	for i, p := range pts {
		out[i] = collage.Pt(p[0], p[1])
	}
	return out
}

func decodeBindings(bindings []bindingJSON) ([]Binding, error) {
	if len(bindings) == 0 {
		return nil, nil
	}
	out := make([]Binding, len(bindings))
	for i, b := range bindings {
		val, err := decodeBindingValue(b.Value)
		if err != nil {
			return nil, fmt.Errorf("binding %q: %w", b.Name, err)
		}
		out[i] = Binding{Name: b.Name, Value: val}
	}
	return out, nil
}

func decodeBindingValue(v bindingValueJSON) (BindingValue, error) {
	switch v.Type {
	case "image":
		return ImageRef{Object: v.Object}, nil
	case "float":
		if len(v.Value) != 1 {
			return nil, fmt.Errorf("float value has %d components", len(v.Value))
		}
		return FloatValue(v.Value[0]), nil
	case "float2":
		if len(v.Value) != 2 {
			return nil, fmt.Errorf("float2 value has %d components", len(v.Value))
		}
		return Float2Value{v.Value[0], v.Value[1]}, nil
	case "float3":
		if len(v.Value) != 3 {
			return nil, fmt.Errorf("float3 value has %d components", len(v.Value))
		}
		return Float3Value{v.Value[0], v.Value[1], v.Value[2]}, nil
	case "int":
		return IntValue(v.Int), nil
	default:
		return nil, fmt.Errorf("unknown binding value kind %q", v.Type)
	}
}
