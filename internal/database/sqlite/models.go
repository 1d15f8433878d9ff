package sqlite

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/kozaktomas/photo-gallery/internal/database"
	"github.com/kozaktomas/photo-gallery/internal/geometry"
)

type personModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"not null;default:''"`
	Embedding []byte
	FaceCount int   `gorm:"not null;default:0"`
	Version   int64 `gorm:"not null;default:1"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (personModel) TableName() string { return "persons" }

func (m *personModel) toPerson() database.Person {
	return database.Person{
		ID:        m.ID,
		Name:      m.Name,
		Embedding: decodeEmbedding(m.Embedding),
		FaceCount: m.FaceCount,
		Version:   m.Version,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

type imageModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UID         string `gorm:"uniqueIndex;not null"`
	Path        string `gorm:"uniqueIndex;not null"`
	FileName    string `gorm:"not null"`
	FileSize    int64
	Width       int
	Height      int
	TakenAt     *time.Time
	Description string `gorm:"not null;default:''"`
	ProcessedAt *time.Time
	CreatedAt   time.Time
}

func (imageModel) TableName() string { return "images" }

func (m *imageModel) toImage() *database.Image {
	return &database.Image{
		ID:          m.ID,
		UID:         m.UID,
		Path:        m.Path,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		Width:       m.Width,
		Height:      m.Height,
		TakenAt:     m.TakenAt,
		Description: m.Description,
		ProcessedAt: m.ProcessedAt,
		CreatedAt:   m.CreatedAt,
	}
}

type box struct {
	X float64 `gorm:"column:x"`
	Y float64 `gorm:"column:y"`
	W float64 `gorm:"column:w"`
	H float64 `gorm:"column:h"`
}

func boxOf(r geometry.Rect) box { return box{X: r.X, Y: r.Y, W: r.W, H: r.H} }

func (b box) rect() geometry.Rect { return geometry.Rect{X: b.X, Y: b.Y, W: b.W, H: b.H} }

type tagModel struct {
	ID         int64       `gorm:"primaryKey;autoIncrement"`
	ImageID    int64       `gorm:"not null;index"`
	Image      *imageModel `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`
	Label      string      `gorm:"not null;index"`
	Confidence float64     `gorm:"not null"`
	Box        box         `gorm:"embedded;embeddedPrefix:bbox_"`
}

func (tagModel) TableName() string { return "tags" }

type faceModel struct {
	ID         int64        `gorm:"primaryKey;autoIncrement"`
	ImageID    int64        `gorm:"not null;uniqueIndex:idx_faces_image_index"`
	Image      *imageModel  `gorm:"foreignKey:ImageID;constraint:OnDelete:CASCADE"`
	FaceIndex  int          `gorm:"not null;uniqueIndex:idx_faces_image_index"`
	Box        box          `gorm:"embedded;embeddedPrefix:bbox_"`
	Confidence float64      `gorm:"not null"`
	Embedding  []byte
	PersonID   *int64       `gorm:"index"`
	Person     *personModel `gorm:"foreignKey:PersonID;constraint:OnDelete:SET NULL"`
}

func (faceModel) TableName() string { return "faces" }

func (m *faceModel) toFace() database.Face {
	return database.Face{
		ID:         m.ID,
		ImageID:    m.ImageID,
		FaceIndex:  m.FaceIndex,
		BBox:       m.Box.rect(),
		Confidence: m.Confidence,
		Embedding:  decodeEmbedding(m.Embedding),
		PersonID:   m.PersonID,
	}
}

// encodeEmbedding packs a vector as little-endian float32 values.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 0, len(v)*4)
	for _, f := range v {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
