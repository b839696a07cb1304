package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
)

const dataURLPrefix = "data:image/png;base64,"

// maxSnapshotScale 快照边长最多为画板的倍数
const maxSnapshotScale = 4

var (
	ErrInvalidSnapshot  = errors.New("invalid snapshot data url")
	ErrSnapshotTooLarge = fmt.Errorf("%w: snapshot too large", ErrInvalidSnapshot)
)

// Snapshotter 画板快照能力，由画板的持有者注入使用
type Snapshotter interface {
	CaptureSnapshot() (string, error)
	Bounds() image.Rectangle
}

// Board 白底不透明的栅格画板，坐标按自身尺寸从 [0,1] 反归一化
type Board struct {
	mu  sync.Mutex
	img *image.NRGBA
}

func NewBoard(width, height int) *Board {
	return &Board{img: imaging.New(width, height, color.White)}
}

func (b *Board) Bounds() image.Rectangle {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.img.Bounds()
}

// DrawLine 绘制一条圆头线段，width 为像素线宽，超过画布对角线按对角线处理
func (b *Board) DrawLine(x0, y0, x1, y1 float64, c color.Color, width float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bounds := b.img.Bounds()
	w, h := float64(bounds.Dx()), float64(bounds.Dy())
	ax, ay := x0*w, y0*h
	bx, by := x1*w, y1*h
	r := math.Min(math.Max(width/2, 0.5), math.Hypot(w, h))
	fill := color.NRGBAModel.Convert(c).(color.NRGBA)

	// 只扫描线段外扩 r 的包围盒，每个像素最多写一次
	minX := max(int(math.Floor(math.Min(ax, bx)-r)), bounds.Min.X)
	maxX := min(int(math.Ceil(math.Max(ax, bx)+r)), bounds.Max.X-1)
	minY := max(int(math.Floor(math.Min(ay, by)-r)), bounds.Min.Y)
	maxY := min(int(math.Ceil(math.Max(ay, by)+r)), bounds.Max.Y-1)

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			if segmentDist2(float64(x)+0.5, float64(y)+0.5, ax, ay, bx, by) <= r*r {
				b.img.SetNRGBA(x, y, fill)
			}
		}
	}
}

// segmentDist2 点 (px,py) 到线段 ab 的距离平方
func segmentDist2(px, py, ax, ay, bx, by float64) float64 {
	dx, dy := bx-ax, by-ay
	t := 0.0
	if l2 := dx*dx + dy*dy; l2 > 0 {
		t = math.Max(0, math.Min(1, ((px-ax)*dx+(py-ay)*dy)/l2))
	}
	ex, ey := px-(ax+t*dx), py-(ay+t*dy)
	return ex*ex + ey*ey
}

// Clear 重新填充为白色
func (b *Board) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	bounds := b.img.Bounds()
	b.img = imaging.New(bounds.Dx(), bounds.Dy(), color.White)
}

// CaptureSnapshot 导出当前画面为 PNG data URL
func (b *Board) CaptureSnapshot() (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, b.img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return dataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Load 用对端快照替换当前画面，尺寸不同时缩放到自身尺寸，透明区域按白底合成
func (b *Board) Load(dataURL string) error {
	bounds := b.Bounds()
	src, err := decodeDataURL(dataURL, maxSnapshotScale*bounds.Dx(), maxSnapshotScale*bounds.Dy())
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if src.Bounds().Dx() != bounds.Dx() || src.Bounds().Dy() != bounds.Dy() {
		src = imaging.Resize(src, bounds.Dx(), bounds.Dy(), imaging.Lanczos)
	}
	bg := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	b.img = imaging.Overlay(bg, src, image.Pt(0, 0), 1.0)
	return nil
}

// Image 返回当前画面的副本
func (b *Board) Image() *image.NRGBA {
	b.mu.Lock()
	defer b.mu.Unlock()
	return imaging.Clone(b.img)
}

// decodeDataURL 先读图片头，声明尺寸超过 maxW x maxH 的快照不解码
func decodeDataURL(dataURL string, maxW, maxH int) (image.Image, error) {
	head, payload, ok := strings.Cut(dataURL, ",")
	if !ok || !strings.HasPrefix(head, "data:image/") || !strings.HasSuffix(head, ";base64") {
		return nil, ErrInvalidSnapshot
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxW || cfg.Height > maxH {
		return nil, fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrSnapshotTooLarge, cfg.Width, cfg.Height, maxW, maxH)
	}
	img, err := imaging.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return img, nil
}
