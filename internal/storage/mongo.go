package storage

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/example/ride-marketplace/internal/models"
)

// MongoStore implements Store on the official driver. The conditional
// updates ride accept and vehicle claim are single FindOneAndUpdate calls
// whose filter carries the guard, so the server decides the race.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	return &MongoStore{client: client, db: client.Database(dbName)}, nil
}

func (m *MongoStore) Close(ctx context.Context) error { return m.client.Disconnect(ctx) }

func (m *MongoStore) rides() *mongo.Collection         { return m.db.Collection("rides") }
func (m *MongoStore) captains() *mongo.Collection      { return m.db.Collection("captains") }
func (m *MongoStore) riders() *mongo.Collection        { return m.db.Collection("riders") }
func (m *MongoStore) owners() *mongo.Collection        { return m.db.Collection("fleet_owners") }
func (m *MongoStore) vehicles() *mongo.Collection      { return m.db.Collection("fleet_vehicles") }
func (m *MongoStore) bookings() *mongo.Collection      { return m.db.Collection("fleet_bookings") }
func (m *MongoStore) notifications() *mongo.Collection { return m.db.Collection("notifications") }

// EnsureIndexes creates the unique indexes the store relies on.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := m.captains().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "phone", Value: 1}}, Options: unique,
	})
	if err != nil {
		return err
	}
	_, err = m.riders().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "phone", Value: 1}}, Options: unique,
	})
	if err != nil {
		return err
	}
	_, err = m.vehicles().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "plate", Value: 1}}, Options: unique,
	})
	if err != nil {
		return err
	}
	_, err = m.owners().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}}, Options: unique,
	})
	return err
}

func mongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	default:
		return err
	}
}

var afterUpdate = options.FindOneAndUpdate().SetReturnDocument(options.After)

// ── rides ──

func (m *MongoStore) CreateRide(ctx context.Context, r *models.Ride) error {
	now := time.Now()
	r.CreatedAt = now
	r.UpdatedAt = now
	_, err := m.rides().InsertOne(ctx, r)
	return mongoErr(err)
}

func (m *MongoStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	var r models.Ride
	err := m.rides().FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &r, nil
}

func (m *MongoStore) AcceptRide(ctx context.Context, rideID, captainID, handle string) (*models.Ride, error) {
	now := time.Now()
	var r models.Ride
	err := m.rides().FindOneAndUpdate(ctx,
		bson.M{"_id": rideID, "status": models.RideRequested},
		bson.M{"$set": bson.M{
			"status":         models.RideAccepted,
			"captain_id":     captainID,
			"captain_handle": handle,
			"accepted_at":    now,
			"updated_at":     now,
		}},
		afterUpdate,
	).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := m.GetRide(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrRideTaken
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *MongoStore) CompleteRide(ctx context.Context, rideID, captainID string) (*models.Ride, error) {
	var r models.Ride
	err := m.rides().FindOneAndUpdate(ctx,
		bson.M{"_id": rideID, "status": models.RideAccepted, "captain_id": captainID},
		bson.M{"$set": bson.M{"status": models.RideCompleted, "updated_at": time.Now()}},
		afterUpdate,
	).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := m.GetRide(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *MongoStore) CancelRide(ctx context.Context, rideID, cancelledBy string, fee float64) (*models.Ride, error) {
	var r models.Ride
	err := m.rides().FindOneAndUpdate(ctx,
		bson.M{"_id": rideID, "status": bson.M{
			"$in": []models.RideStatus{models.RideRequested, models.RideAccepted},
		}},
		bson.M{"$set": bson.M{
			"status":           models.RideCancelled,
			"cancelled_by":     cancelledBy,
			"cancellation_fee": fee,
			"updated_at":       time.Now(),
		}},
		afterUpdate,
	).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		if _, getErr := m.GetRide(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ── captains ──

func (m *MongoStore) CreateCaptain(ctx context.Context, c *models.Captain) error {
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	_, err := m.captains().InsertOne(ctx, c)
	return mongoErr(err)
}

func (m *MongoStore) GetCaptain(ctx context.Context, id string) (*models.Captain, error) {
	var c models.Captain
	err := m.captains().FindOne(ctx, bson.M{"_id": id}).Decode(&c)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &c, nil
}

func (m *MongoStore) GetCaptainByPhone(ctx context.Context, phone string) (*models.Captain, error) {
	var c models.Captain
	err := m.captains().FindOne(ctx, bson.M{"phone": phone}).Decode(&c)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &c, nil
}

func (m *MongoStore) SetCaptainPresence(ctx context.Context, id, handle string, online bool) (*models.Captain, error) {
	var c models.Captain
	err := m.captains().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"handle": handle, "online": online, "updated_at": time.Now()}},
		afterUpdate,
	).Decode(&c)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &c, nil
}

func (m *MongoStore) ClearCaptainByHandle(ctx context.Context, handle string) (*models.Captain, error) {
	var c models.Captain
	err := m.captains().FindOneAndUpdate(ctx,
		bson.M{"handle": handle},
		bson.M{"$set": bson.M{"handle": "", "online": false, "updated_at": time.Now()}},
		afterUpdate,
	).Decode(&c)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &c, nil
}

func (m *MongoStore) CreditCaptain(ctx context.Context, id string, fare float64) (*models.Captain, error) {
	var c models.Captain
	err := m.captains().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{
			"$inc": bson.M{"earnings": fare, "total_rides": 1},
			"$set": bson.M{"updated_at": time.Now()},
		},
		afterUpdate,
	).Decode(&c)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &c, nil
}

func (m *MongoStore) ListOnlineCaptains(ctx context.Context, limit int) ([]*models.Captain, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := m.captains().Find(ctx, bson.M{"online": true},
		options.Find().SetLimit(int64(limit)).SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []*models.Captain
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ── riders ──

func (m *MongoStore) CreateRider(ctx context.Context, r *models.Rider) error {
	r.CreatedAt = time.Now()
	_, err := m.riders().InsertOne(ctx, r)
	return mongoErr(err)
}

func (m *MongoStore) GetRiderByPhone(ctx context.Context, phone string) (*models.Rider, error) {
	var r models.Rider
	err := m.riders().FindOne(ctx, bson.M{"phone": phone}).Decode(&r)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &r, nil
}

// ── fleet owners ──

func (m *MongoStore) CreateOwner(ctx context.Context, o *models.FleetOwner) error {
	o.CreatedAt = time.Now()
	_, err := m.owners().InsertOne(ctx, o)
	return mongoErr(err)
}

func (m *MongoStore) GetOwner(ctx context.Context, id string) (*models.FleetOwner, error) {
	var o models.FleetOwner
	err := m.owners().FindOne(ctx, bson.M{"_id": id}).Decode(&o)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &o, nil
}

// email matching is case-insensitive across every store implementation
var emailCollation = options.FindOne().SetCollation(&options.Collation{Locale: "en", Strength: 2})

func (m *MongoStore) GetOwnerByEmail(ctx context.Context, email string) (*models.FleetOwner, error) {
	var o models.FleetOwner
	err := m.owners().FindOne(ctx, bson.M{"email": email}, emailCollation).Decode(&o)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &o, nil
}

func (m *MongoStore) GetOwnerByPhone(ctx context.Context, phone string) (*models.FleetOwner, error) {
	var o models.FleetOwner
	err := m.owners().FindOne(ctx, bson.M{"phone": phone}).Decode(&o)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &o, nil
}

// ── fleet vehicles ──

func (m *MongoStore) CreateVehicle(ctx context.Context, v *models.FleetVehicle) error {
	now := time.Now()
	v.CreatedAt = now
	v.UpdatedAt = now
	_, err := m.vehicles().InsertOne(ctx, v)
	return mongoErr(err)
}

func (m *MongoStore) GetVehicle(ctx context.Context, id string) (*models.FleetVehicle, error) {
	var v models.FleetVehicle
	err := m.vehicles().FindOne(ctx, bson.M{"_id": id}).Decode(&v)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &v, nil
}

func (m *MongoStore) GetVehicleByPlate(ctx context.Context, plate string) (*models.FleetVehicle, error) {
	var v models.FleetVehicle
	err := m.vehicles().FindOne(ctx, bson.M{"plate": plate}).Decode(&v)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &v, nil
}

func (m *MongoStore) ListVehicles(ctx context.Context, f VehicleFilter) ([]*models.FleetVehicle, error) {
	filter := bson.M{}
	if f.OwnerID != "" {
		filter["owner_id"] = f.OwnerID
	}
	if f.VehicleClass != "" {
		filter["vehicle_class"] = f.VehicleClass
	}
	if f.Available != nil {
		filter["available"] = *f.Available
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := m.vehicles().Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var out []*models.FleetVehicle
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) SetVehicleAvailability(ctx context.Context, id string, available bool) (*models.FleetVehicle, error) {
	var v models.FleetVehicle
	err := m.vehicles().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"available": available, "updated_at": time.Now()}},
		afterUpdate,
	).Decode(&v)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &v, nil
}

func (m *MongoStore) ClaimVehicle(ctx context.Context, id string) error {
	res, err := m.vehicles().UpdateOne(ctx,
		bson.M{"_id": id, "available": true},
		bson.M{"$set": bson.M{"available": false, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		if _, getErr := m.GetVehicle(ctx, id); getErr != nil {
			return getErr
		}
		return ErrVehicleUnavailable
	}
	return nil
}

func (m *MongoStore) ReleaseVehicle(ctx context.Context, id string) error {
	res, err := m.vehicles().UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"available": true, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ── fleet bookings ──

func (m *MongoStore) CreateBooking(ctx context.Context, b *models.FleetBooking) error {
	now := time.Now()
	b.CreatedAt = now
	b.UpdatedAt = now
	_, err := m.bookings().InsertOne(ctx, b)
	return mongoErr(err)
}

func (m *MongoStore) GetBooking(ctx context.Context, id string) (*models.FleetBooking, error) {
	var b models.FleetBooking
	err := m.bookings().FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &b, nil
}

func (m *MongoStore) ListBookings(ctx context.Context, status models.BookingStatus) ([]*models.FleetBooking, error) {
	filter := bson.M{}
	if status != "" {
		filter["status"] = status
	}
	cur, err := m.bookings().Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var out []*models.FleetBooking
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.FleetBooking, models.BookingStatus, error) {
	var prev models.FleetBooking
	err := m.bookings().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now()}},
	).Decode(&prev) // default returns the pre-update document
	if err != nil {
		return nil, "", mongoErr(err)
	}
	updated := prev
	updated.Status = status
	return &updated, prev.Status, nil
}

// ── notifications ──

func (m *MongoStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	n.CreatedAt = time.Now()
	_, err := m.notifications().InsertOne(ctx, n)
	return mongoErr(err)
}

func (m *MongoStore) ListNotifications(ctx context.Context, receiverID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	cur, err := m.notifications().Find(ctx, bson.M{"receiver_id": receiverID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(int64(limit)))
	if err != nil {
		return nil, err
	}
	var out []*models.Notification
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MongoStore) CountUnread(ctx context.Context, receiverID string) (int, error) {
	n, err := m.notifications().CountDocuments(ctx,
		bson.M{"receiver_id": receiverID, "read": false})
	return int(n), err
}

func (m *MongoStore) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	var n models.Notification
	err := m.notifications().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"read": true}},
		afterUpdate,
	).Decode(&n)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &n, nil
}

func (m *MongoStore) MarkAllRead(ctx context.Context, receiverID string) (int, error) {
	res, err := m.notifications().UpdateMany(ctx,
		bson.M{"receiver_id": receiverID, "read": false},
		bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return int(res.ModifiedCount), nil
}

var _ Store = (*MongoStore)(nil)
