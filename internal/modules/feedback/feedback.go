package feedback

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/contactly/core/internal/middleware"
	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/pkg/pagination"
	"github.com/contactly/core/internal/pkg/response"
)

type CreateFeedbackDTO struct {
	Subject string `json:"subject" binding:"required,max=200"`
	Message string `json:"message" binding:"required,max=5000"`
}

type Service struct {
	feedbacks *mongo.Collection
}

func NewService(db *mongo.Database) *Service {
	return &Service{feedbacks: db.Collection(models.FeedbackCollection)}
}

func (s *Service) Create(ctx context.Context, ownerID string, dto *CreateFeedbackDTO) (*models.Feedback, error) {
	fb := models.Feedback{
		Base:    models.NewBase(),
		OwnerID: ownerID,
		Subject: dto.Subject,
		Message: dto.Message,
	}
	if _, err := s.feedbacks.InsertOne(ctx, fb); err != nil {
		return nil, err
	}
	return &fb, nil
}

func (s *Service) List(ctx context.Context, ownerID string, q pagination.Query) ([]models.Feedback, response.Pagination, error) {
	var items []models.Feedback
	pag, err := pagination.Find(ctx, s.feedbacks,
		bson.M{"owner_id": ownerID},
		bson.D{{Key: "created_at", Value: -1}},
		q, &items)
	return items, pag, err
}

// PurgeOwner drops every feedback entry a user filed. Used on account deletion.
func (s *Service) PurgeOwner(ctx context.Context, ownerID string) error {
	_, err := s.feedbacks.DeleteMany(ctx, bson.M{"owner_id": ownerID})
	return err
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/feedback", authMW)

	g.GET("", h.list)
	g.POST("", h.create)
}

func (h *Handler) list(c *gin.Context) {
	items, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateFeedbackDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	fb, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, fb)
}
