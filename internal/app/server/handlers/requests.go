package handlers

import (
	"errors"
	"io"
	"net/http"
	"sync"

	"assist/internal/core/contracts"
	"assist/internal/core/domain"
	"assist/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const imagesField = "images"

var registerOnce sync.Once

// RegisterValidators adds the custom tags used by the request types to
// gin's validator.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return primitive.IsValidObjectID(fl.Field().String())
		})
	})
}

type ticketURI struct {
	TicketID string `uri:"ticketId" binding:"required,objectid"`
}

type widgetURI struct {
	AppKey string `uri:"appKey" binding:"required,max=64"`
}

type visitorURI struct {
	AppKey    string `uri:"appKey" binding:"required,max=64"`
	VisitorID string `uri:"visitorId" binding:"required,max=128"`
}

type visitorTicketURI struct {
	AppKey    string `uri:"appKey" binding:"required,max=64"`
	VisitorID string `uri:"visitorId" binding:"required,max=128"`
	TicketID  string `uri:"ticketId" binding:"required,objectid"`
}

type listQuery struct {
	Skip   int64  `form:"skip" binding:"min=0"`
	Limit  int64  `form:"limit" binding:"min=0,max=100"`
	Status string `form:"status" binding:"max=16"`
	Search string `form:"search" binding:"max=200"`
}

func (q listQuery) params() services.ListParams {
	return services.ListParams{Skip: q.Skip, Limit: q.Limit, Status: q.Status, Search: q.Search}
}

type messageRequest struct {
	Message string `json:"message" binding:"required,max=10000"`
}

type visitorRequest struct {
	ID       string `json:"_id" binding:"required,max=128"`
	Name     string `json:"name" binding:"required,max=120"`
	Email    string `json:"email" binding:"omitempty,email"`
	Language string `json:"language" binding:"max=32"`
	Location string `json:"location" binding:"max=200"`
}

type createTicketRequest struct {
	Visitor visitorRequest `json:"visitor" binding:"required"`
	Message string         `json:"message" binding:"max=10000"`
}

type visitorDataRequest struct {
	Name  string `json:"name" binding:"max=120"`
	Email string `json:"email" binding:"omitempty,email"`
}

type settingsRequest struct {
	Name  *string `json:"name" binding:"omitempty,min=1,max=80"`
	Color *string `json:"color" binding:"omitempty,hexcolor"`
	URL   *string `json:"url" binding:"omitempty,url"`
}

func (r settingsRequest) patch() domain.SettingsPatch {
	return domain.SettingsPatch{Name: r.Name, Color: r.Color, URL: r.URL}
}

// formFiles collects the uploaded images. A request that is not multipart
// yields no files.
func formFiles(c *gin.Context) ([]contracts.File, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
			return nil, nil
		}
		return nil, err
	}
	headers := form.File[imagesField]
	files := make([]contracts.File, 0, len(headers))
	for _, fh := range headers {
		fh := fh
		files = append(files, contracts.File{
			Name:        fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Open:        func() (io.ReadCloser, error) { return fh.Open() },
		})
	}
	return files, nil
}
