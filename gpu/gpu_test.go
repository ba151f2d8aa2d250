package gpu

import "testing"

type fakeDevice struct {
	Device
	name string
}

func (d *fakeDevice) Name() string { return d.name }

func TestRegistry(t *testing.T) {
	Register("fake", func() (Device, error) {
		return &fakeDevice{name: "fake"}, nil
	})
	t.Cleanup(func() { Unregister("fake") })

	found := false
	for _, name := range Available() {
		if name == "fake" {
			found = true
		}
	}
	if !found {
		t.Fatal("registered backend not listed in Available()")
	}

	d, err := Open("fake")
	if err != nil {
		t.Fatalf("Open(fake) failed: %v", err)
	}
	if d.Name() != "fake" {
		t.Errorf("Name() = %q, want fake", d.Name())
	}
}

func TestOpenUnknown(t *testing.T) {
	if _, err := Open("no-such-backend"); err != ErrBackendNotAvailable {
		t.Errorf("Open(unknown) = %v, want ErrBackendNotAvailable", err)
	}
}

func TestUnregister(t *testing.T) {
	Register("gone", func() (Device, error) { return &fakeDevice{name: "gone"}, nil })
	Unregister("gone")
	if _, err := Open("gone"); err != ErrBackendNotAvailable {
		t.Errorf("Open after Unregister = %v, want ErrBackendNotAvailable", err)
	}
}

func TestTextureFormat(t *testing.T) {
	tests := []struct {
		format TextureFormat
		name   string
		bpp    int
	}{
		{FormatRGBA8, "RGBA8", 4},
		{FormatR8, "R8", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.String(); got != tt.name {
				t.Errorf("String() = %q, want %q", got, tt.name)
			}
			if got := tt.format.BytesPerPixel(); got != tt.bpp {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tt.bpp)
			}
		})
	}
}
