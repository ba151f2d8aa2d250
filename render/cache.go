package render

import (
	"github.com/gogpu/collage/gpu"
	"github.com/gogpu/collage/scene"
)

// frameCache memoizes per-frame render results so a node referenced from
// several places is rendered once. The cache owns every texture it
// allocated and releases them when the frame ends; file image and mask
// textures it merely observes and never destroys.
type frameCache struct {
	byID  map[scene.ID]gpu.Texture
	owned []gpu.Texture
	hits  int
}

func newFrameCache() *frameCache {
	return &frameCache{byID: make(map[scene.ID]gpu.Texture)}
}

func (c *frameCache) lookup(id scene.ID) (gpu.Texture, bool) {
	tex, ok := c.byID[id]
	if ok {
		c.hits++
	}
	return tex, ok
}

// insert records a render result. Textures allocated for the frame are
// additionally tracked for release.
func (c *frameCache) insert(id scene.ID, tex gpu.Texture, owned bool) {
	c.byID[id] = tex
	if owned {
		c.owned = append(c.owned, tex)
	}
}

func (c *frameCache) release() {
	for _, tex := range c.owned {
		tex.Destroy()
	}
	c.owned = c.owned[:0]
	clear(c.byID)
}
