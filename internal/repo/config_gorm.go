package repo

import (
	"context"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"gorm.io/gorm"

	errx "github.com/green-credit-copilot/server/internal/core/error"
	"github.com/green-credit-copilot/server/internal/model"
)

// ToolRecord is the gorm row for one user-declared dynamic tool.
type ToolRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	OwnerID     string `gorm:"size:64;index;not null"`
	Name        string `gorm:"size:128;not null"`
	Description string `gorm:"type:text"`
	URL         string `gorm:"size:1024;not null"`
	Method      string `gorm:"size:8;not null"`
	Headers     string `gorm:"type:text"`
	Params      string `gorm:"type:text"`
	Enabled     bool   `gorm:"not null"`
}

func (ToolRecord) TableName() string { return "tool_definitions" }

// ServerRecord is the gorm row for one stored external server definition.
type ServerRecord struct {
	ID      string `gorm:"primaryKey;size:36"`
	OwnerID string `gorm:"size:64;index;not null"`
	Name    string `gorm:"size:128;not null"`
	Type    string `gorm:"size:32"`
	Command string `gorm:"size:1024"`
	Args    string `gorm:"type:text"`
	Env     string `gorm:"type:text"`
	Enabled bool   `gorm:"not null"`
}

func (ServerRecord) TableName() string { return "server_definitions" }

// GormConfigRepository persists tool and server definitions with owner
// scoping enforced at the query layer.
type GormConfigRepository struct {
	db *gorm.DB
}

func NewGormConfigRepository(db *gorm.DB) *GormConfigRepository {
	return &GormConfigRepository{db: db}
}

// AutoMigrate creates the relational tables used by this package.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&DocumentRecord{}, &ToolRecord{}, &ServerRecord{}); err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func (r *GormConfigRepository) CreateTool(ctx context.Context, def *model.ToolDefinition) error {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	rec, err := toolToRecord(def)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func (r *GormConfigRepository) ListTools(ctx context.Context, ownerID string) ([]*model.ToolDefinition, error) {
	var recs []ToolRecord
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name").Find(&recs).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	out := make([]*model.ToolDefinition, 0, len(recs))
	for i := range recs {
		def, err := recordToTool(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func (r *GormConfigRepository) UpdateTool(ctx context.Context, ownerID string, def *model.ToolDefinition) error {
	if err := r.ensureToolOwner(ctx, ownerID, def.ID); err != nil {
		return err
	}
	def.OwnerID = ownerID
	rec, err := toolToRecord(def)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func (r *GormConfigRepository) DeleteTool(ctx context.Context, ownerID, id string) error {
	if err := r.ensureToolOwner(ctx, ownerID, id); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&ToolRecord{}, "id = ?", id).Error; err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func (r *GormConfigRepository) EnabledTools(ctx context.Context, ownerID string) ([]model.ToolDefinition, error) {
	var recs []ToolRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND enabled = ?", ownerID, true).
		Order("name").
		Find(&recs).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	out := make([]model.ToolDefinition, 0, len(recs))
	for i := range recs {
		def, err := recordToTool(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *def)
	}
	return out, nil
}

func (r *GormConfigRepository) CreateServer(ctx context.Context, def *model.ServerDefinition) error {
	if def.ID == "" {
		def.ID = uuid.NewString()
	}
	rec, err := serverToRecord(def)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func (r *GormConfigRepository) ListServers(ctx context.Context, ownerID string) ([]*model.ServerDefinition, error) {
	var recs []ServerRecord
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name").Find(&recs).Error
	if err != nil {
		return nil, errx.WrapDB(err)
	}
	out := make([]*model.ServerDefinition, 0, len(recs))
	for i := range recs {
		def, err := recordToServer(&recs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func (r *GormConfigRepository) UpdateServer(ctx context.Context, ownerID string, def *model.ServerDefinition) error {
	if err := r.ensureServerOwner(ctx, ownerID, def.ID); err != nil {
		return err
	}
	def.OwnerID = ownerID
	rec, err := serverToRecord(def)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(rec).Error; err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func (r *GormConfigRepository) DeleteServer(ctx context.Context, ownerID, id string) error {
	if err := r.ensureServerOwner(ctx, ownerID, id); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&ServerRecord{}, "id = ?", id).Error; err != nil {
		return errx.WrapDB(err)
	}
	return nil
}

func (r *GormConfigRepository) ensureToolOwner(ctx context.Context, ownerID, id string) error {
	var rec ToolRecord
	err := r.db.WithContext(ctx).Select("owner_id").First(&rec, "id = ?", id).Error
	if err != nil {
		return errx.WrapDB(err)
	}
	if rec.OwnerID != ownerID {
		return errx.PermissionDenied()
	}
	return nil
}

func (r *GormConfigRepository) ensureServerOwner(ctx context.Context, ownerID, id string) error {
	var rec ServerRecord
	err := r.db.WithContext(ctx).Select("owner_id").First(&rec, "id = ?", id).Error
	if err != nil {
		return errx.WrapDB(err)
	}
	if rec.OwnerID != ownerID {
		return errx.PermissionDenied()
	}
	return nil
}

func toolToRecord(def *model.ToolDefinition) (*ToolRecord, error) {
	headers, err := marshalField(def.Headers)
	if err != nil {
		return nil, err
	}
	params, err := marshalField(def.Params)
	if err != nil {
		return nil, err
	}
	return &ToolRecord{
		ID:          def.ID,
		OwnerID:     def.OwnerID,
		Name:        def.Name,
		Description: def.Description,
		URL:         def.URL,
		Method:      def.Method,
		Headers:     headers,
		Params:      params,
		Enabled:     def.Enabled,
	}, nil
}

func recordToTool(rec *ToolRecord) (*model.ToolDefinition, error) {
	def := &model.ToolDefinition{
		ID:          rec.ID,
		OwnerID:     rec.OwnerID,
		Name:        rec.Name,
		Description: rec.Description,
		URL:         rec.URL,
		Method:      rec.Method,
		Enabled:     rec.Enabled,
	}
	if err := unmarshalField(rec.Headers, &def.Headers); err != nil {
		return nil, err
	}
	if err := unmarshalField(rec.Params, &def.Params); err != nil {
		return nil, err
	}
	return def, nil
}

func serverToRecord(def *model.ServerDefinition) (*ServerRecord, error) {
	args, err := marshalField(def.Args)
	if err != nil {
		return nil, err
	}
	env, err := marshalField(def.Env)
	if err != nil {
		return nil, err
	}
	return &ServerRecord{
		ID:      def.ID,
		OwnerID: def.OwnerID,
		Name:    def.Name,
		Type:    def.Type,
		Command: def.Command,
		Args:    args,
		Env:     env,
		Enabled: def.Enabled,
	}, nil
}

func recordToServer(rec *ServerRecord) (*model.ServerDefinition, error) {
	def := &model.ServerDefinition{
		ID:      rec.ID,
		OwnerID: rec.OwnerID,
		Name:    rec.Name,
		Type:    rec.Type,
		Command: rec.Command,
		Enabled: rec.Enabled,
	}
	if err := unmarshalField(rec.Args, &def.Args); err != nil {
		return nil, err
	}
	if err := unmarshalField(rec.Env, &def.Env); err != nil {
		return nil, err
	}
	return def, nil
}

func marshalField(v any) (string, error) {
	s, err := sonic.MarshalString(v)
	if err != nil {
		return "", errx.New(err, http.StatusInternalServerError, "encode definition field")
	}
	return s, nil
}

func unmarshalField(s string, out any) error {
	if s == "" || s == "null" {
		return nil
	}
	if err := sonic.UnmarshalString(s, out); err != nil {
		return errx.New(err, http.StatusInternalServerError, "decode definition field")
	}
	return nil
}

var _ model.ConfigRepository = (*GormConfigRepository)(nil)
