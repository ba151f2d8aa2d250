// Command collage-render renders one object of a saved document to a PNG.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/gogpu/collage/export"
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/render"
	"github.com/gogpu/collage/scene"

	_ "github.com/gogpu/collage/gpu/softgpu"
	_ "github.com/gogpu/collage/gpu/wgpu"
)

func main() {
	var (
		docPath = flag.String("doc", "", "document JSON file")
		rootID  = flag.Uint64("root", 0, "object id to render (default: last object)")
		output  = flag.String("output", "out.png", "output PNG file")
		backend = flag.String("backend", "", "gpu backend (default: best available)")
	)
	flag.Parse()

	if *docPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*docPath)
	if err != nil {
		log.Fatalf("read document: %v", err)
	}
	doc, err := scene.Decode(data)
	if err != nil {
		log.Fatalf("decode document: %v", err)
	}

	var dev gpu.Device
	if *backend != "" {
		dev, err = gpu.Open(*backend)
	} else {
		dev, err = gpu.Default()
	}
	if err != nil {
		log.Fatalf("open gpu device: %v", err)
	}
	defer dev.Close()

	if err := doc.Rebuild(dev); err != nil {
		log.Fatalf("rebuild derived content: %v", err)
	}

	root := scene.ID(*rootID)
	if root == scene.NoObject {
		ids := doc.Objects.IDs()
		if len(ids) == 0 {
			log.Fatal("document has no objects")
		}
		root = ids[len(ids)-1]
	}

	r := render.New(dev, doc)
	defer r.Close()
	pix, width, height, err := r.RenderToPixels(root)
	if err != nil {
		log.Fatalf("render object %d: %v", root, err)
	}

	worker := export.NewWorker()
	defer worker.Close()
	if err := worker.Submit(pix, width, height, *output); err != nil {
		log.Fatalf("submit save: %v", err)
	}
	for {
		if res, ok := worker.Step(); ok {
			if res.Err != nil {
				log.Fatalf("save: %v", res.Err)
			}
			break
		}
		time.Sleep(time.Millisecond)
	}
	log.Printf("rendered object %d to %s (%dx%d)", root, *output, width, height)
}
