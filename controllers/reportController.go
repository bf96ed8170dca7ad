package controllers

import (
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gin-gonic/gin"

	"reportit/middleware"
	"reportit/services"
	"reportit/utils"
)

type ReportController struct {
	reports *services.ReportService
}

func NewReportController(reports *services.ReportService) *ReportController {
	return &ReportController{reports: reports}
}

func (rc *ReportController) Create(c *gin.Context) {
	var input services.ReportInput
	if !bindJSON(c, &input) {
		return
	}
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	report, err := rc.reports.Create(ctx, userID, input, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"report": report})
}

func (rc *ReportController) List(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	reports, err := rc.reports.List(ctx)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reports": reports})
}

func (rc *ReportController) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	report, err := rc.reports.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": report})
}

func readPhoto(fh *multipart.FileHeader) (services.Photo, error) {
	f, err := fh.Open()
	if err != nil {
		return services.Photo{}, err
	}
	defer f.Close()
	// One byte over the limit so oversized files are still rejected.
	data, err := io.ReadAll(io.LimitReader(f, utils.MaxPhotoSize+1))
	if err != nil {
		return services.Photo{}, err
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return services.Photo{Name: fh.Filename, ContentType: contentType, Data: data}, nil
}

// UploadImages takes a reportId form field and up to five "images" files.
func (rc *ReportController) UploadImages(c *gin.Context) {
	reportID, err := services.ParseID(c.PostForm("reportId"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "reportId is required"})
		return
	}
	form, err := c.MultipartForm()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
		return
	}
	files := form.File["images"]
	if len(files) > services.MaxPhotosPerUpload {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Too many images"})
		return
	}
	photos := make([]services.Photo, 0, len(files))
	for _, fh := range files {
		p, err := readPhoto(fh)
		if err != nil {
			respondError(c, err)
			return
		}
		photos = append(photos, p)
	}

	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	img, err := rc.reports.AddImages(ctx, userID, reportID, photos)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Images uploaded", "imageId": img.ID, "count": len(img.Images)})
}

func (rc *ReportController) Images(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	images, err := rc.reports.Images(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"images": images})
}

func (rc *ReportController) Comments(c *gin.Context) {
	id, ok := pathID(c, "reportId")
	if !ok {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	comments, err := rc.reports.Comments(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments})
}

type commentRequest struct {
	Message string `json:"message"`
}

func (rc *ReportController) AddComment(c *gin.Context) {
	id, ok := pathID(c, "reportId")
	if !ok {
		return
	}
	var input commentRequest
	if !bindJSON(c, &input) {
		return
	}
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	comment, err := rc.reports.AddComment(ctx, userID, id, input.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Comment added", "comment": comment})
}
