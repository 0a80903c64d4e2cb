package messagecrypt

import (
	"errors"
	"log/slog"
	"reflect"

	"quad/internal/middleware"
	"quad/internal/observability"

	"gorm.io/gorm"
)

// UndecryptableMessage replaces content that fails to decrypt on load.
const UndecryptableMessage = "[message could not be decrypted]"

// Sealable is implemented by models with string fields stored encrypted.
type Sealable interface {
	SealedFields() []*string
}

// ColumnSealer is implemented by Sealable models that may be updated through
// column maps, e.g. Model(&m).Update("content", v).
type ColumnSealer interface {
	SealedColumns() []string
}

var sealableType = reflect.TypeOf((*Sealable)(nil)).Elem()

// Plugin is a gorm.Plugin that seals Sealable fields before they are written
// and opens them after they are read or written.
type Plugin struct {
	cipher *Cipher
	logger *slog.Logger
}

// NewPlugin returns a plugin using c. A nil logger falls back to middleware.Logger.
func NewPlugin(c *Cipher, logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = middleware.Logger
	}
	return &Plugin{cipher: c, logger: logger}
}

// Name implements gorm.Plugin.
func (p *Plugin) Name() string {
	return "messagecrypt"
}

// Initialize implements gorm.Plugin.
func (p *Plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("messagecrypt:seal_create", p.seal),
		cb.Create().After("gorm:create").Register("messagecrypt:restore_create", p.open),
		cb.Update().Before("gorm:update").Register("messagecrypt:seal_update", p.seal),
		cb.Update().After("gorm:update").Register("messagecrypt:restore_update", p.open),
		cb.Query().After("gorm:query").Register("messagecrypt:open", p.open),
	)
}

func applies(db *gorm.DB) bool {
	if db.Statement == nil || db.Statement.Schema == nil {
		return false
	}
	return reflect.PointerTo(db.Statement.Schema.ModelType).Implements(sealableType)
}

func (p *Plugin) seal(db *gorm.DB) {
	if db.Error != nil || !applies(db) {
		return
	}

	var failed error
	sealOne := func(s Sealable) {
		for _, f := range s.SealedFields() {
			enc, err := p.cipher.Encrypt(*f)
			if err != nil {
				failed = err
				return
			}
			if enc != *f {
				observability.MessageCryptoOps.WithLabelValues("seal").Inc()
			}
			*f = enc
		}
	}

	eachSealable(db.Statement.ReflectValue, sealOne)

	// Updates(&other) and Update("col", v) carry values outside the model.
	if values, ok := db.Statement.Dest.(map[string]interface{}); ok {
		p.sealColumns(db, values, &failed)
	} else if copied, ok := addressableCopy(db.Statement.Dest); ok {
		eachSealable(copied, sealOne)
		db.Statement.Dest = copied.Interface()
	} else {
		eachSealable(destValue(db), sealOne)
	}

	if failed != nil {
		_ = db.AddError(failed)
	}
}

func (p *Plugin) sealColumns(db *gorm.DB, values map[string]interface{}, failed *error) {
	model, ok := reflect.New(db.Statement.Schema.ModelType).Interface().(ColumnSealer)
	if !ok {
		return
	}
	for _, col := range model.SealedColumns() {
		for key, v := range values {
			field := db.Statement.Schema.LookUpField(key)
			if key != col && (field == nil || field.DBName != col) {
				continue
			}
			plain, ok := v.(string)
			if !ok {
				continue
			}
			enc, err := p.cipher.Encrypt(plain)
			if err != nil {
				*failed = err
				return
			}
			values[key] = enc
			observability.MessageCryptoOps.WithLabelValues("seal").Inc()
		}
	}
}

func (p *Plugin) open(db *gorm.DB) {
	if !applies(db) {
		return
	}

	openOne := func(s Sealable) {
		for _, f := range s.SealedFields() {
			if !IsSealed(*f) {
				continue
			}
			plain, err := p.cipher.Decrypt(*f)
			if err != nil {
				observability.MessageDecryptFailures.Inc()
				p.logger.WarnContext(db.Statement.Context, "stored message failed to decrypt",
					slog.String("table", db.Statement.Table),
					slog.String("error", err.Error()),
				)
				*f = UndecryptableMessage
				continue
			}
			observability.MessageCryptoOps.WithLabelValues("open").Inc()
			*f = plain
		}
	}

	eachSealable(db.Statement.ReflectValue, openOne)
	eachSealable(destValue(db), openOne)
}

// destValue returns Statement.Dest when it is a non-nil pointer to something
// other than the reflected model, otherwise an invalid Value.
func destValue(db *gorm.DB) reflect.Value {
	rv := reflect.ValueOf(db.Statement.Dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return reflect.Value{}
	}
	if model := db.Statement.ReflectValue; model.IsValid() && model.CanAddr() && model.Addr().Pointer() == rv.Pointer() {
		return reflect.Value{}
	}
	return rv
}

// addressableCopy copies a Sealable struct passed by value, as in
// Updates(models.Message{...}), so its fields can be sealed in place.
// The caller's value is left untouched.
func addressableCopy(dest interface{}) (reflect.Value, bool) {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Struct || !reflect.PointerTo(rv.Type()).Implements(sealableType) {
		return reflect.Value{}, false
	}
	cp := reflect.New(rv.Type())
	cp.Elem().Set(rv)
	return cp, true
}

func eachSealable(rv reflect.Value, fn func(Sealable)) {
	rv = reflect.Indirect(rv)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			eachSealable(rv.Index(i), fn)
		}
	case reflect.Struct:
		if !rv.CanAddr() {
			return
		}
		if s, ok := rv.Addr().Interface().(Sealable); ok {
			fn(s)
		}
	}
}
