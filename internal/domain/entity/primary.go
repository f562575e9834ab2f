package entity

import (
	"time"

	"github.com/biocultivo/labstock-api/internal/domain/unit"
)

// EntityKind tipo de entidad primaria que el coordinador crea y, si hace falta, compensa.
type EntityKind string

const (
	KindCulture   EntityKind = "CULTURE"
	KindLot       EntityKind = "LOT"
	KindContainer EntityKind = "CONTAINER"
	KindMedium    EntityKind = "MEDIUM"
)

// PrimaryEntity entidad creada por una creación compuesta. La interfaz permite al
// coordinador persistir y borrar de forma uniforme durante la compensación.
type PrimaryEntity interface {
	EntityKind() EntityKind
	EntityID() string
}

// Culture cultivo creado a partir de una donación.
type Culture struct {
	ID         string
	DonationID string
	StrainName string
	CreatedAt  time.Time
	CreatedBy  string
}

func (c *Culture) EntityKind() EntityKind { return KindCulture }
func (c *Culture) EntityID() string       { return c.ID }

// CultureLot lote de producción asociado a un cultivo.
type CultureLot struct {
	ID        string
	CultureID string
	Code      string
	CreatedAt time.Time
}

func (l *CultureLot) EntityKind() EntityKind { return KindLot }
func (l *CultureLot) EntityID() string       { return l.ID }

// Container envase individual de un lote de cultivo.
type Container struct {
	ID              string
	LotID           string
	ContainerTypeID string
	PositionLabel   string
	CreatedAt       time.Time
}

func (c *Container) EntityKind() EntityKind { return KindContainer }
func (c *Container) EntityID() string       { return c.ID }

// ReadyMedium medio de cultivo preparado a partir de una fórmula; sus ingredientes
// se descuentan del stock como bajas.
type ReadyMedium struct {
	ID          string
	FormulaName string
	Volume      unit.Quantity
	PreparedAt  time.Time
	PreparedBy  string
}

func (m *ReadyMedium) EntityKind() EntityKind { return KindMedium }
func (m *ReadyMedium) EntityID() string       { return m.ID }
