package label

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/contactly/core/internal/middleware"
	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/modules/contact"
	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/response"
)

type CreateLabelDTO struct {
	Name  string `json:"name"  binding:"required,max=60"`
	Color string `json:"color" binding:"omitempty,hexcolor"`
}

type UpdateLabelDTO struct {
	Name  *string `json:"name"  binding:"omitempty,max=60"`
	Color *string `json:"color" binding:"omitempty,hexcolor"`
}

type Service struct {
	labels   *mongo.Collection
	contacts *contact.Service
}

func NewService(db *mongo.Database, contacts *contact.Service) *Service {
	return &Service{
		labels:   db.Collection(models.LabelCollection),
		contacts: contacts,
	}
}

func (s *Service) List(ctx context.Context, ownerID string) ([]models.Label, error) {
	cur, err := s.labels.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var items []models.Label
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) Create(ctx context.Context, ownerID string, dto *CreateLabelDTO) (*models.Label, error) {
	count, err := s.labels.CountDocuments(ctx, bson.M{"owner_id": ownerID, "name": dto.Name})
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, apperror.Validationf("label %q already exists", dto.Name)
	}

	label := models.Label{
		Base:    models.NewBase(),
		OwnerID: ownerID,
		Name:    dto.Name,
		Color:   dto.Color,
	}
	if _, err := s.labels.InsertOne(ctx, label); err != nil {
		return nil, err
	}
	return &label, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id string, dto *UpdateLabelDTO) (*models.Label, error) {
	set := bson.M{"updated_at": time.Now()}
	if dto.Name != nil {
		set["name"] = *dto.Name
	}
	if dto.Color != nil {
		set["color"] = *dto.Color
	}

	res, err := s.labels.UpdateOne(ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": set},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, apperror.ErrNotFound
	}

	var label models.Label
	if err := s.labels.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&label); err != nil {
		return nil, err
	}
	return &label, nil
}

// Delete removes the label and detaches it from every contact carrying it.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.labels.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperror.ErrNotFound
	}
	return s.contacts.DetachLabel(ctx, ownerID, id)
}

// PurgeOwner drops every label a user owns. Used on account deletion.
func (s *Service) PurgeOwner(ctx context.Context, ownerID string) error {
	_, err := s.labels.DeleteMany(ctx, bson.M{"owner_id": ownerID})
	return err
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/labels", authMW)

	g.GET("", h.list)
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
}

func (h *Handler) list(c *gin.Context) {
	items, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.OK(c, items)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateLabelDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	label, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, label)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateLabelDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	label, err := h.svc.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, label)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
