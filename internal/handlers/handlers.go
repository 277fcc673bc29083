package handlers

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/Brownie44l1/waste-api/internal/model"
)

const (
	errNoFile           = "No file provided"
	errInvalidImage     = "Invalid image"
	errPredictionFailed = "Prediction failed"
)

// Classifier is the loaded model as seen by the HTTP layer.
type Classifier interface {
	Classify(img image.Image) (*model.Prediction, error)
	Labels() []string
}

type Handler struct {
	classifier     Classifier
	log            *logrus.Logger
	logPredictions bool
}

func NewHandler(classifier Classifier, log *logrus.Logger, logPredictions bool) *Handler {
	return &Handler{
		classifier:     classifier,
		log:            log,
		logPredictions: logPredictions,
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, model.HealthResponse{
		Status:  "healthy",
		Classes: h.classifier.Labels(),
	})
}

// Classify handles POST /classify: one multipart "file" in, label and
// confidence out.
func (h *Handler) Classify(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, model.ErrorResponse{Error: errNoFile})
		return
	}

	log := h.entry(c)

	file, err := header.Open()
	if err != nil {
		log.WithError(err).Error("failed to open upload")
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: errPredictionFailed})
		return
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		log.WithError(err).WithField("filename", header.Filename).Info("rejected undecodable upload")
		c.JSON(http.StatusUnprocessableEntity, model.ErrorResponse{Error: errInvalidImage})
		return
	}

	prediction, err := h.classifier.Classify(img)
	if err != nil {
		log.WithError(err).Error("prediction failed")
		c.JSON(http.StatusInternalServerError, model.ErrorResponse{Error: errPredictionFailed})
		return
	}

	result := prediction.Result()
	if h.logPredictions {
		log.WithFields(logrus.Fields{
			"format":     format,
			"class":      result.Class,
			"confidence": result.Confidence,
		}).Debug("prediction")
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) entry(c *gin.Context) *logrus.Entry {
	return h.log.WithField("request_id", c.GetString(requestIDKey))
}
