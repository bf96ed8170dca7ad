package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"reportit/middleware"
	"reportit/services"
)

const maxUploadSize = 25 << 20

type DeviceController struct {
	gate    *services.DeviceGate
	reports *services.ReportService
}

func NewDeviceController(gate *services.DeviceGate, reports *services.ReportService) *DeviceController {
	return &DeviceController{gate: gate, reports: reports}
}

// deviceRequest accepts macId as an alias of deviceId for older clients.
type deviceRequest struct {
	DeviceID   string `json:"deviceId"`
	MacID      string `json:"macId"`
	DeviceName string `json:"deviceName"`
}

func (r deviceRequest) id() string {
	if r.DeviceID != "" {
		return r.DeviceID
	}
	return r.MacID
}

func (dc *DeviceController) Register(c *gin.Context) {
	var input deviceRequest
	if !bindJSON(c, &input) {
		return
	}
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	device, err := dc.gate.Register(ctx, userID, input.id(), input.DeviceName)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Device registered, waiting for admin approval.",
		"device":  device,
	})
}

func (dc *DeviceController) Check(c *gin.Context) {
	var input deviceRequest
	if !bindJSON(c, &input) {
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	res, err := dc.gate.Check(ctx, input.id(), requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (dc *DeviceController) UploadToDrive(c *gin.Context) {
	var input services.ReportInput
	if !bindJSON(c, &input) {
		return
	}
	userID, _, _ := middleware.CurrentUser(c)
	ctx, cancel := requestContext(c)
	defer cancel()

	row, err := dc.reports.AppendToDrive(ctx, userID, input, requestMeta(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Report exported to Drive.", "row": row})
}

// UploadFile stores the multipart field "report" (or "file").
func (dc *DeviceController) UploadFile(c *gin.Context) {
	fh, err := c.FormFile("report")
	if err != nil {
		fh, err = c.FormFile("file")
	}
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "No file received"})
		return
	}
	if fh.Size > maxUploadSize {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "File too large"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize))
	if err != nil {
		respondError(c, err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	key, err := dc.reports.UploadFile(ctx, fh.Filename, fh.Header.Get("Content-Type"), data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "File uploaded", "fileId": key})
}
