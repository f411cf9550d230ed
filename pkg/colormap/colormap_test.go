package colormap

import (
	"image/color"
	"testing"
)

const spectrum = `
0 0 0
1 0 0 1
0 1 0 0.5
bad line
0 0 1
`

func TestParse(t *testing.T) {
	cm, err := Parse(spectrum)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if cm.Len() != 4 {
		t.Fatalf("Expected 4 colors, got %d", cm.Len())
	}
	if cm.Colors[3] != 1 {
		t.Errorf("Expected default alpha 1, got %v", cm.Colors[3])
	}
	if cm.Colors[11] != 0.5 {
		t.Errorf("Expected explicit alpha 0.5, got %v", cm.Colors[11])
	}
	if !cm.Clamp || cm.Flip || cm.Scale != 1 || cm.Contrast != 1 || cm.Brightness != 0 {
		t.Errorf("Unexpected defaults: %+v", cm)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse("1 0 x\n"); err == nil {
		t.Error("Expected error for bad component")
	}
	if _, err := Parse("\n\n1 2\n"); err == nil {
		t.Error("Expected error for empty map")
	}
}

func TestMapColorsBuckets(t *testing.T) {
	cm, err := Parse(spectrum)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	out := cm.MapColors([]float64{0, 0.3, 0.6, 1.0}, cm.Options(0, 1))

	// 4 buckets over [0, 1]: 0.3 -> 1, 0.6 -> 2, 1.0 clamps to 3.
	expected := []float64{
		0, 0, 0, 1,
		1, 0, 0, 1,
		0, 1, 0, 0.5,
		0, 0, 1, 1,
	}
	for i := range expected {
		if out[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, out)
		}
	}
}

func TestMapColorsClampAndFlip(t *testing.T) {
	cm, err := Parse(spectrum, WithClamp(false))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	out := cm.MapColors([]float64{-5, 5}, cm.Options(0, 1))
	for i := 0; i < 8; i += 4 {
		if out[i] != 0 || out[i+1] != 0 || out[i+2] != 0 || out[i+3] != 1 {
			t.Errorf("Expected default color for out-of-range value, got %v", out[i:i+4])
		}
	}

	o := cm.Options(0, 1)
	o.Flip = true
	out = cm.MapColors([]float64{0}, o)
	if out[2] != 1 {
		t.Errorf("Expected flipped map to start with blue, got %v", out)
	}
}

func TestMapColorsScaleContrastBrightness(t *testing.T) {
	cm := Gray()
	o := cm.Options(0, 255)
	o.Scale = 255
	o.Contrast = 0.5
	o.Brightness = 0.1
	o.Alpha = 0.5

	out := cm.MapColors([]float64{255}, o)
	// contrast and brightness are multiplied by scale
	if out[0] != 0.5*255+0.1*255 {
		t.Errorf("Unexpected red %v", out[0])
	}
	if out[3] != 127.5 {
		t.Errorf("Expected alpha 127.5, got %v", out[3])
	}
}

func TestColorFromValue(t *testing.T) {
	cm, err := Parse(spectrum)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	o := cm.Options(0, 1)
	o.Brightness = 0.5
	got := cm.ColorFromValue(0.3, o)
	if got != [4]float64{1, 0.5, 0.5, 1} {
		t.Errorf("Unexpected color %v", got)
	}

	if hex := cm.Hex(0.6, cm.Options(0, 1)); hex != "00ff00" {
		t.Errorf("Expected 00ff00, got %s", hex)
	}
}

func TestRange(t *testing.T) {
	m := Gray().Range(0, 100)
	if c := m.Color(100); c != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected white, got %v", c)
	}
	if c := m.Color(-20); c != (color.RGBA{0, 0, 0, 255}) {
		t.Errorf("Expected clamped black, got %v", c)
	}
	mid := m.Color(50)
	if mid.R < 127 || mid.R > 128 || mid.R != mid.G || mid.G != mid.B {
		t.Errorf("Expected mid grey, got %v", mid)
	}
}
