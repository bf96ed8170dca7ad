package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"reportit/export"
	"reportit/models"
	"reportit/storage"
	"reportit/store"
	"reportit/utils"
)

const MaxPhotosPerUpload = 5

type ReportInput struct {
	ProjectName        string              `json:"projectName"`
	ProjectNumber      string              `json:"projectNumber"`
	Customer           string              `json:"customer"`
	WorkDone           []string            `json:"workDone"`
	Priority           models.Priority     `json:"priority"`
	Status             models.ReportStatus `json:"status"`
	NextActionInternal string              `json:"nextActionInternal"`
	NextActionCustomer string              `json:"nextActionCustomer"`
	Location           *LocationInput      `json:"location"`
}

type LocationInput struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   string   `json:"address"`
}

type Photo struct {
	Name        string
	ContentType string
	Data        []byte
}

type ImagePayload struct {
	ContentType string `json:"contentType"`
	Data        string `json:"data"`
	Preview     string `json:"preview,omitempty"`
}

type ReportService struct {
	store    store.Store
	objects  storage.Store
	appender *export.Appender
	audit    *Auditor
	log      *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewReportService(s store.Store, objects storage.Store, appender *export.Appender, audit *Auditor,
	log *zap.Logger, loc *time.Location) *ReportService {
	return &ReportService{
		store:    s,
		objects:  objects,
		appender: appender,
		audit:    audit,
		log:      log,
		loc:      loc,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *ReportService) findUser(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	u, err := s.store.FindUserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	return u, nil
}

func (s *ReportService) findReport(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	r, err := s.store.FindReportByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, internal(err)
	}
	return r, nil
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// build validates input and fills defaults. Location is kept only when both
// coordinates are present.
func (in ReportInput) build(author *models.User, now time.Time) (*models.Report, error) {
	r := &models.Report{
		AgentID:            author.ID,
		ProjectName:        strings.TrimSpace(in.ProjectName),
		ProjectNumber:      strings.TrimSpace(in.ProjectNumber),
		Customer:           strings.TrimSpace(in.Customer),
		WorkDone:           cleanList(in.WorkDone),
		Priority:           in.Priority,
		Status:             in.Status,
		CreatedBy:          author.Name,
		NextActionInternal: strings.TrimSpace(in.NextActionInternal),
		NextActionCustomer: strings.TrimSpace(in.NextActionCustomer),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if r.ProjectName == "" || r.ProjectNumber == "" {
		return nil, validation("projectName and projectNumber are required")
	}
	if r.Priority == "" {
		r.Priority = models.PriorityMedium
	}
	if !r.Priority.Valid() {
		return nil, validation("Invalid priority")
	}
	if r.Status == "" {
		r.Status = models.StatusOpen
	}
	if !r.Status.Valid() {
		return nil, validation("Invalid status")
	}
	if l := in.Location; l != nil && l.Latitude != nil && l.Longitude != nil {
		r.Location = &models.Location{Latitude: *l.Latitude, Longitude: *l.Longitude, Address: strings.TrimSpace(l.Address)}
	}
	return r, nil
}

func (s *ReportService) Create(ctx context.Context, agentID primitive.ObjectID, in ReportInput, meta RequestMeta) (*models.Report, error) {
	author, err := s.findUser(ctx, agentID)
	if err != nil {
		return nil, err
	}
	r, err := in.build(author, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateReport(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrProjectNumberTaken
		}
		return nil, internal(err)
	}
	s.audit.Record(ctx, agentID, models.ActionCreateReport, meta)
	return r, nil
}

func (s *ReportService) views(ctx context.Context, reports []models.Report) ([]models.ReportView, error) {
	ids := make([]primitive.ObjectID, 0, len(reports))
	for _, r := range reports {
		ids = append(ids, r.AgentID)
	}
	users, err := s.store.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[primitive.ObjectID]models.UserSummary, len(users))
	for i := range users {
		byID[users[i].ID] = users[i].Summary()
	}
	out := make([]models.ReportView, 0, len(reports))
	for _, r := range reports {
		v := models.ReportView{Report: r}
		if a, ok := byID[r.AgentID]; ok {
			v.Agent = &a
		}
		out = append(out, v)
	}
	return out, nil
}

// List returns all reports, newest first, with their authors.
func (s *ReportService) List(ctx context.Context) ([]models.ReportView, error) {
	reports, err := s.store.ListReports(ctx, store.ReportFilter{})
	if err != nil {
		return nil, internal(err)
	}
	out, err := s.views(ctx, reports)
	if err != nil {
		return nil, internal(err)
	}
	return out, nil
}

func (s *ReportService) Get(ctx context.Context, id primitive.ObjectID) (*models.ReportView, error) {
	r, err := s.findReport(ctx, id)
	if err != nil {
		return nil, err
	}
	views, err := s.views(ctx, []models.Report{*r})
	if err != nil {
		return nil, internal(err)
	}
	return &views[0], nil
}

func photoExt(contentType string) string {
	if contentType == "image/png" {
		return ".png"
	}
	return ".jpg"
}

// AddImages stores up to five photos for a report. Every photo is checked
// before anything is written.
func (s *ReportService) AddImages(ctx context.Context, userID, reportID primitive.ObjectID, photos []Photo) (*models.ReportImage, error) {
	if len(photos) == 0 {
		return nil, validation("No images uploaded")
	}
	if len(photos) > MaxPhotosPerUpload {
		return nil, validation(fmt.Sprintf("At most %d images per upload", MaxPhotosPerUpload))
	}
	if _, err := s.findReport(ctx, reportID); err != nil {
		return nil, err
	}

	prepared := make([]*utils.PreparedPhoto, 0, len(photos))
	for _, p := range photos {
		pp, err := utils.PreparePhoto(p.Data, p.ContentType)
		if err != nil {
			return nil, validation(fmt.Sprintf("%s: %v", p.Name, err))
		}
		prepared = append(prepared, pp)
	}

	img := &models.ReportImage{ReportID: reportID, UserID: userID, CreatedAt: s.now()}
	for _, pp := range prepared {
		base := path.Join("reports", reportID.Hex(), uuid.NewString())
		key := base + photoExt(pp.ContentType)
		previewKey := base + "_preview.jpg"
		if err := s.objects.Put(ctx, key, pp.Data, pp.ContentType); err != nil {
			return nil, internal(err)
		}
		if err := s.objects.Put(ctx, previewKey, pp.Preview, "image/jpeg"); err != nil {
			return nil, internal(err)
		}
		img.Images = append(img.Images, models.StoredImage{
			Key:         key,
			PreviewKey:  previewKey,
			ContentType: pp.ContentType,
			Size:        int64(len(pp.Data)),
		})
	}
	if err := s.store.AddReportImages(ctx, img); err != nil {
		return nil, internal(err)
	}
	return img, nil
}

// Images returns every stored photo of a report, base64 encoded.
func (s *ReportService) Images(ctx context.Context, reportID primitive.ObjectID) ([]ImagePayload, error) {
	groups, err := s.store.ListReportImages(ctx, reportID)
	if err != nil {
		return nil, internal(err)
	}
	var out []ImagePayload
	for _, g := range groups {
		for _, im := range g.Images {
			data, err := s.objects.Get(ctx, im.Key)
			if err != nil {
				return nil, internal(err)
			}
			p := ImagePayload{ContentType: im.ContentType, Data: base64.StdEncoding.EncodeToString(data)}
			if im.PreviewKey != "" {
				if preview, err := s.objects.Get(ctx, im.PreviewKey); err == nil {
					p.Preview = base64.StdEncoding.EncodeToString(preview)
				}
			}
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoImages
	}
	return out, nil
}

func (s *ReportService) AddComment(ctx context.Context, userID, reportID primitive.ObjectID, message string) (*models.ReportComment, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, validation("Comment cannot be empty")
	}
	if _, err := s.findReport(ctx, reportID); err != nil {
		return nil, err
	}
	c := &models.ReportComment{ReportID: reportID, UserID: userID, Message: message, CreatedAt: s.now()}
	if err := s.store.AddComment(ctx, c); err != nil {
		return nil, internal(err)
	}
	return c, nil
}

// Comments lists a report's comments, oldest first, with their authors.
func (s *ReportService) Comments(ctx context.Context, reportID primitive.ObjectID) ([]models.CommentView, error) {
	comments, err := s.store.ListComments(ctx, reportID)
	if err != nil {
		return nil, internal(err)
	}
	ids := make([]primitive.ObjectID, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.UserID)
	}
	users, err := s.store.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, internal(err)
	}
	byID := make(map[primitive.ObjectID]models.UserSummary, len(users))
	for i := range users {
		sum := users[i].Summary()
		sum.Email = ""
		byID[users[i].ID] = sum
	}
	out := make([]models.CommentView, 0, len(comments))
	for _, c := range comments {
		v := models.CommentView{ReportComment: c}
		if u, ok := byID[c.UserID]; ok {
			v.User = &u
		}
		out = append(out, v)
	}
	return out, nil
}

// Export renders all reports, oldest first, as a workbook.
func (s *ReportService) Export(ctx context.Context) ([]byte, error) {
	reports, err := s.store.ListReports(ctx, store.ReportFilter{})
	if err != nil {
		return nil, internal(err)
	}
	slices.Reverse(reports)
	data, err := export.WriteReports(reports, s.loc)
	if err != nil {
		return nil, internal(err)
	}
	return data, nil
}

// SnapshotKey is where the daily workbook for day is stored.
func (s *ReportService) SnapshotKey(day time.Time) string {
	return "exports/reports-" + day.In(s.loc).Format("2006-01-02") + ".xlsx"
}

// Snapshot stores the current workbook in object storage and returns its key.
func (s *ReportService) Snapshot(ctx context.Context, day time.Time) (string, error) {
	data, err := s.Export(ctx)
	if err != nil {
		return "", err
	}
	key := s.SnapshotKey(day)
	if err := s.objects.Put(ctx, key, data, export.ContentType); err != nil {
		return "", err
	}
	return key, nil
}

// AppendToDrive adds one report row to the shared online workbook. The row
// is not saved as a report.
func (s *ReportService) AppendToDrive(ctx context.Context, userID primitive.ObjectID, in ReportInput, meta RequestMeta) (int, error) {
	author, err := s.findUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	r := models.Report{
		ProjectName:        strings.TrimSpace(in.ProjectName),
		ProjectNumber:      strings.TrimSpace(in.ProjectNumber),
		Customer:           strings.TrimSpace(in.Customer),
		WorkDone:           cleanList(in.WorkDone),
		Status:             in.Status,
		CreatedBy:          author.Name,
		NextActionInternal: strings.TrimSpace(in.NextActionInternal),
		NextActionCustomer: strings.TrimSpace(in.NextActionCustomer),
		CreatedAt:          s.now(),
	}
	if in.Location != nil && in.Location.Address != "" {
		r.Location = &models.Location{Address: in.Location.Address}
	}
	serial, err := s.appender.Append(ctx, r)
	if err != nil {
		return 0, internal(err)
	}
	s.audit.Record(ctx, userID, models.ActionDriveReport, meta)
	return serial, nil
}

// UploadFile stores an arbitrary file and returns its object key.
func (s *ReportService) UploadFile(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", validation("No file received")
	}
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		name = "file"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := path.Join("uploads", s.now().In(s.loc).Format("2006-01-02"), uuid.NewString()+"-"+name)
	if err := s.objects.Put(ctx, key, data, contentType); err != nil {
		return "", internal(err)
	}
	return key, nil
}
