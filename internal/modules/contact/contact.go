package contact

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/contactly/core/internal/middleware"
	"github.com/contactly/core/internal/models"
	"github.com/contactly/core/internal/pkg/apperror"
	"github.com/contactly/core/internal/pkg/pagination"
	"github.com/contactly/core/internal/pkg/response"
)

type CreateContactDTO struct {
	Name     string   `json:"name"      binding:"required,max=120"`
	Email    string   `json:"email"     binding:"omitempty,email"`
	Phone    string   `json:"phone"     binding:"omitempty,max=40"`
	Company  string   `json:"company"   binding:"omitempty,max=120"`
	JobTitle string   `json:"job_title" binding:"omitempty,max=120"`
	Address  string   `json:"address"   binding:"omitempty,max=300"`
	Note     string   `json:"note"      binding:"omitempty,max=2000"`
	Avatar   string   `json:"avatar"    binding:"omitempty,url"`
	Starred  bool     `json:"starred"`
	LabelIDs []string `json:"label_ids"`
}

type UpdateContactDTO struct {
	Name     *string   `json:"name"      binding:"omitempty,max=120"`
	Email    *string   `json:"email"     binding:"omitempty,email"`
	Phone    *string   `json:"phone"     binding:"omitempty,max=40"`
	Company  *string   `json:"company"   binding:"omitempty,max=120"`
	JobTitle *string   `json:"job_title" binding:"omitempty,max=120"`
	Address  *string   `json:"address"   binding:"omitempty,max=300"`
	Note     *string   `json:"note"      binding:"omitempty,max=2000"`
	Avatar   *string   `json:"avatar"`
	Starred  *bool     `json:"starred"`
	LabelIDs *[]string `json:"label_ids"`
}

// Service owns the contacts collection. Every operation is scoped to an
// owner id; a contact belonging to someone else behaves exactly like a
// missing one.
type Service struct {
	contacts *mongo.Collection
	labels   *mongo.Collection
}

func NewService(db *mongo.Database) *Service {
	return &Service{
		contacts: db.Collection(models.ContactCollection),
		labels:   db.Collection(models.LabelCollection),
	}
}

type ListFilter struct {
	Search  string
	LabelID string
	Starred *bool
}

func (s *Service) List(ctx context.Context, ownerID string, f ListFilter, q pagination.Query) ([]models.Contact, response.Pagination, error) {
	filter := bson.M{"owner_id": ownerID}
	if f.Search != "" {
		needle := bson.M{"$regex": regexp.QuoteMeta(f.Search), "$options": "i"}
		filter["$or"] = []bson.M{
			{"name": needle},
			{"email": needle},
			{"phone": needle},
			{"company": needle},
		}
	}
	if f.LabelID != "" {
		filter["label_ids"] = f.LabelID
	}
	if f.Starred != nil {
		filter["starred"] = *f.Starred
	}

	var items []models.Contact
	pag, err := pagination.Find(ctx, s.contacts, filter, bson.D{{Key: "name", Value: 1}}, q, &items)
	return items, pag, err
}

func (s *Service) Get(ctx context.Context, ownerID, id string) (*models.Contact, error) {
	var contact models.Contact
	err := s.contacts.FindOne(ctx, bson.M{"_id": id, "owner_id": ownerID}).Decode(&contact)
	if err == mongo.ErrNoDocuments {
		return nil, apperror.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &contact, nil
}

func (s *Service) Create(ctx context.Context, ownerID string, dto *CreateContactDTO) (*models.Contact, error) {
	labelIDs, err := s.checkLabels(ctx, ownerID, dto.LabelIDs)
	if err != nil {
		return nil, err
	}

	contact := models.Contact{
		Base:     models.NewBase(),
		OwnerID:  ownerID,
		Name:     dto.Name,
		Email:    dto.Email,
		Phone:    dto.Phone,
		Company:  dto.Company,
		JobTitle: dto.JobTitle,
		Address:  dto.Address,
		Note:     dto.Note,
		Avatar:   dto.Avatar,
		Starred:  dto.Starred,
		LabelIDs: labelIDs,
	}
	if _, err := s.contacts.InsertOne(ctx, contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

func (s *Service) Update(ctx context.Context, ownerID, id string, dto *UpdateContactDTO) (*models.Contact, error) {
	set := bson.M{"updated_at": time.Now()}
	if dto.Name != nil {
		set["name"] = *dto.Name
	}
	if dto.Email != nil {
		set["email"] = *dto.Email
	}
	if dto.Phone != nil {
		set["phone"] = *dto.Phone
	}
	if dto.Company != nil {
		set["company"] = *dto.Company
	}
	if dto.JobTitle != nil {
		set["job_title"] = *dto.JobTitle
	}
	if dto.Address != nil {
		set["address"] = *dto.Address
	}
	if dto.Note != nil {
		set["note"] = *dto.Note
	}
	if dto.Avatar != nil {
		set["avatar"] = *dto.Avatar
	}
	if dto.Starred != nil {
		set["starred"] = *dto.Starred
	}
	if dto.LabelIDs != nil {
		labelIDs, err := s.checkLabels(ctx, ownerID, *dto.LabelIDs)
		if err != nil {
			return nil, err
		}
		set["label_ids"] = labelIDs
	}

	res, err := s.contacts.UpdateOne(ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": set},
	)
	if err != nil {
		return nil, err
	}
	if res.MatchedCount == 0 {
		return nil, apperror.ErrNotFound
	}
	return s.Get(ctx, ownerID, id)
}

func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	res, err := s.contacts.DeleteOne(ctx, bson.M{"_id": id, "owner_id": ownerID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// SetStarred flips the starred flag without touching the rest of the document.
func (s *Service) SetStarred(ctx context.Context, ownerID, id string, starred bool) error {
	res, err := s.contacts.UpdateOne(ctx,
		bson.M{"_id": id, "owner_id": ownerID},
		bson.M{"$set": bson.M{"starred": starred, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperror.ErrNotFound
	}
	return nil
}

// DetachLabel removes a deleted label from every contact that carried it.
func (s *Service) DetachLabel(ctx context.Context, ownerID, labelID string) error {
	_, err := s.contacts.UpdateMany(ctx,
		bson.M{"owner_id": ownerID, "label_ids": labelID},
		bson.M{"$pull": bson.M{"label_ids": labelID}, "$set": bson.M{"updated_at": time.Now()}},
	)
	return err
}

// PurgeOwner drops every contact a user owns. Used on account deletion.
func (s *Service) PurgeOwner(ctx context.Context, ownerID string) error {
	_, err := s.contacts.DeleteMany(ctx, bson.M{"owner_id": ownerID})
	return err
}

// checkLabels deduplicates the incoming ids and rejects any the owner does
// not actually have.
func (s *Service) checkLabels(ctx context.Context, ownerID string, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	seen := make(map[string]struct{}, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	count, err := s.labels.CountDocuments(ctx, bson.M{
		"_id":      bson.M{"$in": unique},
		"owner_id": ownerID,
	})
	if err != nil {
		return nil, err
	}
	if int(count) != len(unique) {
		return nil, apperror.Validationf("unknown label id")
	}
	return unique, nil
}

type Handler struct{ svc *Service }

func NewHandler(svc *Service) *Handler { return &Handler{svc: svc} }

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, authMW gin.HandlerFunc) {
	g := rg.Group("/contacts", authMW)

	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.POST("", h.create)
	g.PATCH("/:id", h.update)
	g.DELETE("/:id", h.delete)
	g.PUT("/:id/star", h.star)
	g.DELETE("/:id/star", h.unstar)
}

// GET /contacts?q=&label=&starred=&page=&size=
func (h *Handler) list(c *gin.Context) {
	f := ListFilter{
		Search:  c.Query("q"),
		LabelID: c.Query("label"),
	}
	if raw := c.Query("starred"); raw != "" {
		starred, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "starred must be a boolean")
			return
		}
		f.Starred = &starred
	}

	items, pag, err := h.svc.List(c.Request.Context(), middleware.CurrentUserID(c), f, pagination.FromContext(c))
	if err != nil {
		response.InternalError(c, err)
		return
	}
	response.Paged(c, items, pag)
}

func (h *Handler) get(c *gin.Context) {
	contact, err := h.svc.Get(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contact)
}

func (h *Handler) create(c *gin.Context) {
	var dto CreateContactDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	contact, err := h.svc.Create(c.Request.Context(), middleware.CurrentUserID(c), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, contact)
}

func (h *Handler) update(c *gin.Context) {
	var dto UpdateContactDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	contact, err := h.svc.Update(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), &dto)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, contact)
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) star(c *gin.Context) {
	if err := h.svc.SetStarred(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), true); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *Handler) unstar(c *gin.Context) {
	if err := h.svc.SetStarred(c.Request.Context(), middleware.CurrentUserID(c), c.Param("id"), false); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
