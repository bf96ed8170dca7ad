package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"reportit/models"
)

const (
	UsersCollection          = "users"
	SessionsCollection       = "sessions"
	TimeSpentCollection      = "timespent"
	DevicesCollection        = "deviceinfos"
	ActivityCollection       = "activitylogs"
	ReportsCollection        = "reports"
	ReportImagesCollection   = "reportimages"
	ReportCommentsCollection = "reportcomments"
)

// Mongo implements Store on a MongoDB database.
type Mongo struct {
	users     *mongo.Collection
	sessions  *mongo.Collection
	timeSpent *mongo.Collection
	devices   *mongo.Collection
	activity  *mongo.Collection
	reports   *mongo.Collection
	images    *mongo.Collection
	comments  *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{
		users:     db.Collection(UsersCollection),
		sessions:  db.Collection(SessionsCollection),
		timeSpent: db.Collection(TimeSpentCollection),
		devices:   db.Collection(DevicesCollection),
		activity:  db.Collection(ActivityCollection),
		reports:   db.Collection(ReportsCollection),
		images:    db.Collection(ReportImagesCollection),
		comments:  db.Collection(ReportCommentsCollection),
	}
}

// EnsureIndexes creates the unique constraints the services rely on. The
// sessions collection deliberately has no TTL index: expired sessions must
// survive until their time is committed.
func (m *Mongo) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	specs := []struct {
		coll   *mongo.Collection
		models []mongo.IndexModel
	}{
		{m.users, []mongo.IndexModel{{Keys: bson.D{{Key: "email", Value: 1}}, Options: unique}}},
		{m.sessions, []mongo.IndexModel{
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "valid", Value: 1}}},
			{Keys: bson.D{{Key: "valid", Value: 1}, {Key: "expires_at", Value: 1}}},
		}},
		{m.timeSpent, []mongo.IndexModel{{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique}}},
		{m.devices, []mongo.IndexModel{
			{Keys: bson.D{{Key: "device_id", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: unique},
		}},
		{m.activity, []mongo.IndexModel{{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}}}},
		{m.reports, []mongo.IndexModel{
			{Keys: bson.D{{Key: "project_number", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "agent_id", Value: 1}}},
		}},
		{m.images, []mongo.IndexModel{{Keys: bson.D{{Key: "report_id", Value: 1}}}}},
		{m.comments, []mongo.IndexModel{{Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "created_at", Value: 1}}}}},
	}
	for _, s := range specs {
		if _, err := s.coll.Indexes().CreateMany(ctx, s.models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", s.coll.Name(), err)
		}
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

func insert(ctx context.Context, coll *mongo.Collection, id *primitive.ObjectID, doc interface{}) error {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
	_, err := coll.InsertOne(ctx, doc)
	return translate(err)
}

func findOne[T any](ctx context.Context, coll *mongo.Collection, filter interface{}) (*T, error) {
	var out T
	if err := coll.FindOne(ctx, filter).Decode(&out); err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func findAll[T any](ctx context.Context, coll *mongo.Collection, filter interface{}, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	out := make([]T, 0)
	for cursor.Next(ctx) {
		var item T
		if err := cursor.Decode(&item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, cursor.Err()
}

// users

func userFilter(f UserFilter) bson.M {
	filter := bson.M{}
	if f.Role != "" {
		filter["role"] = f.Role
	} else if f.ExcludeRole != "" {
		filter["role"] = bson.M{"$ne": f.ExcludeRole}
	}
	if f.Approved != nil {
		filter["is_approved"] = *f.Approved
	}
	return filter
}

func (m *Mongo) CreateUser(ctx context.Context, u *models.User) error {
	return insert(ctx, m.users, &u.ID, u)
}

func (m *Mongo) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return findOne[models.User](ctx, m.users, bson.M{"_id": id})
}

func (m *Mongo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return findOne[models.User](ctx, m.users, bson.M{"email": email})
}

func (m *Mongo) FindUsersByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	return findAll[models.User](ctx, m.users, bson.M{"_id": bson.M{"$in": ids}})
}

func (m *Mongo) ListUsers(ctx context.Context, f UserFilter) ([]models.User, error) {
	return findAll[models.User](ctx, m.users, userFilter(f), options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (m *Mongo) CountUsers(ctx context.Context, f UserFilter) (int64, error) {
	return m.users.CountDocuments(ctx, userFilter(f))
}

func (m *Mongo) SetApproval(ctx context.Context, id primitive.ObjectID, approved bool, note string) (*models.User, error) {
	update := bson.M{
		"$set": bson.M{"is_approved": approved, "updated_at": time.Now().UTC()},
	}
	if note == "" {
		update["$unset"] = bson.M{"device_note": ""}
	} else {
		update["$set"].(bson.M)["device_note"] = note
	}

	var u models.User
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if err := m.users.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&u); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// sessions

func (m *Mongo) CreateSession(ctx context.Context, s *models.Session) error {
	return insert(ctx, m.sessions, &s.ID, s)
}

func (m *Mongo) ListValidSessions(ctx context.Context, userID primitive.ObjectID) ([]models.Session, error) {
	return findAll[models.Session](ctx, m.sessions, bson.M{"user_id": userID, "valid": true})
}

func (m *Mongo) InvalidateSession(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := m.sessions.UpdateOne(ctx,
		bson.M{"_id": id, "valid": true},
		bson.M{"$set": bson.M{"valid": false}},
	)
	if err != nil {
		return false, err
	}
	return res.ModifiedCount == 1, nil
}

func (m *Mongo) ActiveUserIDs(ctx context.Context, now time.Time) ([]primitive.ObjectID, error) {
	values, err := m.sessions.Distinct(ctx, "user_id", bson.M{
		"valid":      true,
		"expires_at": bson.M{"$gt": now},
	})
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(primitive.ObjectID); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// time spent

func (m *Mongo) AddMinutes(ctx context.Context, userID primitive.ObjectID, delta int64) error {
	_, err := m.timeSpent.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$inc": bson.M{"minutes": delta},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		},
		options.Update().SetUpsert(true),
	)
	return translate(err)
}

func (m *Mongo) EnsureTimeSpent(ctx context.Context, userID primitive.ObjectID) error {
	_, err := m.timeSpent.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$setOnInsert": bson.M{"minutes": int64(0), "updated_at": time.Now().UTC()}},
		options.Update().SetUpsert(true),
	)
	return translate(err)
}

func (m *Mongo) FindTimeSpent(ctx context.Context, userID primitive.ObjectID) (*models.TimeSpent, error) {
	return findOne[models.TimeSpent](ctx, m.timeSpent, bson.M{"user_id": userID})
}

func (m *Mongo) ListTimeSpent(ctx context.Context) ([]models.TimeSpent, error) {
	return findAll[models.TimeSpent](ctx, m.timeSpent, bson.M{}, options.Find().SetSort(bson.D{{Key: "minutes", Value: -1}}))
}

// devices

func (m *Mongo) CreateDevice(ctx context.Context, d *models.DeviceInfo) error {
	return insert(ctx, m.devices, &d.ID, d)
}

func (m *Mongo) FindDeviceByDeviceID(ctx context.Context, deviceID string) (*models.DeviceInfo, error) {
	return findOne[models.DeviceInfo](ctx, m.devices, bson.M{"device_id": deviceID})
}

func (m *Mongo) FindDeviceByUser(ctx context.Context, userID primitive.ObjectID) (*models.DeviceInfo, error) {
	return findOne[models.DeviceInfo](ctx, m.devices, bson.M{"user_id": userID})
}

// activity

func (m *Mongo) AppendActivity(ctx context.Context, a *models.ActivityLog) error {
	return insert(ctx, m.activity, &a.ID, a)
}

func (m *Mongo) ListActivity(ctx context.Context, f ActivityFilter) ([]models.ActivityLog, error) {
	filter := bson.M{}
	if f.UserID != nil {
		filter["user_id"] = *f.UserID
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(f.Limit)
	}
	return findAll[models.ActivityLog](ctx, m.activity, filter, opts)
}

// reports

func reportFilter(f ReportFilter) bson.M {
	filter := bson.M{}
	if f.AgentID != nil {
		filter["agent_id"] = *f.AgentID
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	return filter
}

func (m *Mongo) CreateReport(ctx context.Context, r *models.Report) error {
	return insert(ctx, m.reports, &r.ID, r)
}

func (m *Mongo) FindReportByID(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	return findOne[models.Report](ctx, m.reports, bson.M{"_id": id})
}

func (m *Mongo) ListReports(ctx context.Context, f ReportFilter) ([]models.Report, error) {
	return findAll[models.Report](ctx, m.reports, reportFilter(f), options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

func (m *Mongo) CountReports(ctx context.Context, f ReportFilter) (int64, error) {
	return m.reports.CountDocuments(ctx, reportFilter(f))
}

func (m *Mongo) AddReportImages(ctx context.Context, img *models.ReportImage) error {
	return insert(ctx, m.images, &img.ID, img)
}

func (m *Mongo) ListReportImages(ctx context.Context, reportID primitive.ObjectID) ([]models.ReportImage, error) {
	return findAll[models.ReportImage](ctx, m.images, bson.M{"report_id": reportID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

func (m *Mongo) AddComment(ctx context.Context, c *models.ReportComment) error {
	return insert(ctx, m.comments, &c.ID, c)
}

func (m *Mongo) ListComments(ctx context.Context, reportID primitive.ObjectID) ([]models.ReportComment, error) {
	return findAll[models.ReportComment](ctx, m.comments, bson.M{"report_id": reportID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
}

var _ Store = (*Mongo)(nil)
