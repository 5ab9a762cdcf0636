package resolver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/partloader/internal/domain/descriptor"
)

// TrustContext reports whether the embedding environment has established
// the security context native code needs
type TrustContext interface {
	Established() bool
}

// Trust is a fixed TrustContext
type Trust bool

// Established implements TrustContext
func (t Trust) Established() bool { return bool(t) }

// activate makes a fetched artifact loadable. This is the only place the
// coordinator looks at artifact kind.
func (c *Coordinator) activate(a descriptor.Artifact, loc LocalLocation) error {
	switch a.Kind {
	case descriptor.KindCodeArchive:
		return nil
	case descriptor.KindNativeLibrary:
		if c.trust == nil || !c.trust.Established() {
			return fmt.Errorf("%w: %s", ErrNoTrustContext, a.Location)
		}
		c.logger.Debug("Native library activated",
			zap.String("location", a.Location),
			zap.String("path", string(loc)))
		return nil
	default:
		return fmt.Errorf("%w: artifact %s has kind %d", descriptor.ErrInvalid, a.Location, int(a.Kind))
	}
}
