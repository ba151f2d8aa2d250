// Package collage implements an interactive image-compositing engine for Go.
//
// # Overview
//
// collage evaluates a directed acyclic graph of heterogeneous visual objects
// (raster images, shader-transformed images, vector paths, generated masks,
// freehand drawings, text, and nested compositions) into pixels on demand.
// Intermediate results are memoized per frame, graph mutations are guarded
// against dependency cycles, and rendering runs on a pluggable GPU backend.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/collage"
//	    "github.com/gogpu/collage/gpu/softgpu"
//	    "github.com/gogpu/collage/render"
//	    "github.com/gogpu/collage/scene"
//	)
//
//	dev := softgpu.New()
//	doc := scene.NewDocument()
//	id, _ := doc.AddFileImage(dev, "photo.png")
//
//	r := render.New(dev, doc)
//	pixels, w, h, _ := r.RenderToPixels(id)
//
// # Architecture
//
// The module is organized into:
//   - Root package: Transform, Point, viewport math, Mask, scanline rasterizer
//   - scene: the object graph, dependency loop guard, save/load shapes
//   - render: the per-frame evaluator and texture cache
//   - sdf: GPU distance-field generation for brush strokes
//   - gpu: the rendering backend abstraction (softgpu for CPU, wgpu for GPU)
//   - text: glyph shaping and atlas rasterization
//   - export: the background save worker
//
// All graph mutation and rendering is single-threaded; only the export worker
// runs on a separate goroutine, and only plain byte buffers cross that
// boundary.
package collage
