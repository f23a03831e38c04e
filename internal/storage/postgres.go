package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/example/ride-marketplace/internal/models"
)

// PostgresStore implements Store on database/sql. Every guarded transition
// is a single conditional UPDATE ... RETURNING, so the accept race and the
// vehicle claim are decided by the database, not by read-then-write.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

// DB exposes the underlying handle for migrations.
func (p *PostgresStore) DB() *sql.DB { return p.db }

func (p *PostgresStore) Close() error { return p.db.Close() }

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// ── rides ──

const rideColumns = `id, pickup_lat, pickup_lng, pickup_address,
	dropoff_lat, dropoff_lng, dropoff_address,
	fare, ride_type, payment_method, scheduled_at, status,
	captain_id, captain_handle, accepted_at,
	cancellation_fee, cancelled_by, created_at, updated_at`

func scanRide(row interface{ Scan(...any) error }) (*models.Ride, error) {
	var r models.Ride
	var scheduledAt, acceptedAt sql.NullTime
	var captainID, captainHandle, cancelledBy sql.NullString
	err := row.Scan(
		&r.ID, &r.Pickup.Lat, &r.Pickup.Lng, &r.Pickup.Address,
		&r.Dropoff.Lat, &r.Dropoff.Lng, &r.Dropoff.Address,
		&r.Fare, &r.RideType, &r.PaymentMethod, &scheduledAt, &r.Status,
		&captainID, &captainHandle, &acceptedAt,
		&r.CancellationFee, &cancelledBy, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if scheduledAt.Valid {
		r.ScheduledAt = &scheduledAt.Time
	}
	if acceptedAt.Valid {
		r.AcceptedAt = &acceptedAt.Time
	}
	r.CaptainID = captainID.String
	r.CaptainHandle = captainHandle.String
	r.CancelledBy = cancelledBy.String
	return &r, nil
}

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO rides
			(id, pickup_lat, pickup_lng, pickup_address,
			 dropoff_lat, dropoff_lng, dropoff_address,
			 fare, ride_type, payment_method, scheduled_at, status, cancellation_fee)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.ID, r.Pickup.Lat, r.Pickup.Lng, r.Pickup.Address,
		r.Dropoff.Lat, r.Dropoff.Lng, r.Dropoff.Address,
		r.Fare, r.RideType, r.PaymentMethod, r.ScheduledAt, r.Status, r.CancellationFee)
	if err != nil {
		return fmt.Errorf("insert ride: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetRide(ctx context.Context, id string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+rideColumns+` FROM rides WHERE id = $1`, id)
	return scanRide(row)
}

func (p *PostgresStore) AcceptRide(ctx context.Context, rideID, captainID, handle string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE rides
		SET status = $1, captain_id = $2, captain_handle = $3,
		    accepted_at = NOW(), updated_at = NOW()
		WHERE id = $4 AND status = $5
		RETURNING `+rideColumns,
		models.RideAccepted, captainID, handle, rideID, models.RideRequested)
	r, err := scanRide(row)
	if errors.Is(err, ErrNotFound) {
		// Guard failed: distinguish a missing ride from a lost race.
		if _, getErr := p.GetRide(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrRideTaken
	}
	return r, err
}

func (p *PostgresStore) CompleteRide(ctx context.Context, rideID, captainID string) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE rides
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND captain_id = $4
		RETURNING `+rideColumns,
		models.RideCompleted, rideID, models.RideAccepted, captainID)
	r, err := scanRide(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := p.GetRide(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	return r, err
}

func (p *PostgresStore) CancelRide(ctx context.Context, rideID, cancelledBy string, fee float64) (*models.Ride, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE rides
		SET status = $1, cancelled_by = $2, cancellation_fee = $3, updated_at = NOW()
		WHERE id = $4 AND status IN ($5, $6)
		RETURNING `+rideColumns,
		models.RideCancelled, cancelledBy, fee, rideID,
		models.RideRequested, models.RideAccepted)
	r, err := scanRide(row)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := p.GetRide(ctx, rideID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrInvalidState
	}
	return r, err
}

// ── captains ──

const captainColumns = `id, name, phone, password_hash,
	vehicle_class, vehicle_plate, vehicle_color, vehicle_model,
	rating, earnings, total_rides, online, handle, created_at, updated_at`

func scanCaptain(row interface{ Scan(...any) error }) (*models.Captain, error) {
	var c models.Captain
	var handle sql.NullString
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.PasswordHash,
		&c.Vehicle.Class, &c.Vehicle.Plate, &c.Vehicle.Color, &c.Vehicle.Model,
		&c.Rating, &c.Earnings, &c.TotalRides, &c.Online, &handle,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c.Handle = handle.String
	return &c, nil
}

func (p *PostgresStore) CreateCaptain(ctx context.Context, c *models.Captain) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO captains
			(id, name, phone, password_hash,
			 vehicle_class, vehicle_plate, vehicle_color, vehicle_model, rating)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.Name, c.Phone, c.PasswordHash,
		c.Vehicle.Class, c.Vehicle.Plate, c.Vehicle.Color, c.Vehicle.Model, c.Rating)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) GetCaptain(ctx context.Context, id string) (*models.Captain, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+captainColumns+` FROM captains WHERE id = $1`, id)
	return scanCaptain(row)
}

func (p *PostgresStore) GetCaptainByPhone(ctx context.Context, phone string) (*models.Captain, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT `+captainColumns+` FROM captains WHERE phone = $1`, phone)
	return scanCaptain(row)
}

func (p *PostgresStore) SetCaptainPresence(ctx context.Context, id, handle string, online bool) (*models.Captain, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE captains SET handle = NULLIF($1, ''), online = $2, updated_at = NOW()
		WHERE id = $3
		RETURNING `+captainColumns,
		handle, online, id)
	return scanCaptain(row)
}

func (p *PostgresStore) ClearCaptainByHandle(ctx context.Context, handle string) (*models.Captain, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE captains SET handle = NULL, online = FALSE, updated_at = NOW()
		WHERE handle = $1
		RETURNING `+captainColumns,
		handle)
	return scanCaptain(row)
}

func (p *PostgresStore) CreditCaptain(ctx context.Context, id string, fare float64) (*models.Captain, error) {
	row := p.db.QueryRowContext(ctx, `
		UPDATE captains
		SET earnings = earnings + $1, total_rides = total_rides + 1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+captainColumns,
		fare, id)
	return scanCaptain(row)
}

func (p *PostgresStore) ListOnlineCaptains(ctx context.Context, limit int) ([]*models.Captain, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+captainColumns+` FROM captains WHERE online ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Captain
	for rows.Next() {
		c, err := scanCaptain(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ── riders ──

func (p *PostgresStore) CreateRider(ctx context.Context, r *models.Rider) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO riders (id, name, phone) VALUES ($1,$2,$3)`,
		r.ID, r.Name, r.Phone)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) GetRiderByPhone(ctx context.Context, phone string) (*models.Rider, error) {
	var r models.Rider
	err := p.db.QueryRowContext(ctx,
		`SELECT id, name, phone, created_at FROM riders WHERE phone = $1`, phone).
		Scan(&r.ID, &r.Name, &r.Phone, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ── fleet owners ──

const ownerColumns = `id, owner_name, company_name, phone, email, address, total_vehicles, password_hash, created_at`

func scanOwner(row interface{ Scan(...any) error }) (*models.FleetOwner, error) {
	var o models.FleetOwner
	err := row.Scan(&o.ID, &o.OwnerName, &o.CompanyName, &o.Phone, &o.Email,
		&o.Address, &o.TotalVehicles, &o.PasswordHash, &o.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (p *PostgresStore) CreateOwner(ctx context.Context, o *models.FleetOwner) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fleet_owners
			(id, owner_name, company_name, phone, email, address, total_vehicles, password_hash)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		o.ID, o.OwnerName, o.CompanyName, o.Phone, o.Email, o.Address, o.TotalVehicles, o.PasswordHash)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) GetOwner(ctx context.Context, id string) (*models.FleetOwner, error) {
	return scanOwner(p.db.QueryRowContext(ctx,
		`SELECT `+ownerColumns+` FROM fleet_owners WHERE id = $1`, id))
}

func (p *PostgresStore) GetOwnerByEmail(ctx context.Context, email string) (*models.FleetOwner, error) {
	return scanOwner(p.db.QueryRowContext(ctx,
		`SELECT `+ownerColumns+` FROM fleet_owners WHERE LOWER(email) = LOWER($1)`, email))
}

func (p *PostgresStore) GetOwnerByPhone(ctx context.Context, phone string) (*models.FleetOwner, error) {
	return scanOwner(p.db.QueryRowContext(ctx,
		`SELECT `+ownerColumns+` FROM fleet_owners WHERE phone = $1`, phone))
}

// ── fleet vehicles ──

const vehicleColumns = `id, owner_id, vehicle_class, plate, driver_name, driver_phone,
	seating_capacity, available, created_at, updated_at`

func scanVehicle(row interface{ Scan(...any) error }) (*models.FleetVehicle, error) {
	var v models.FleetVehicle
	err := row.Scan(&v.ID, &v.OwnerID, &v.VehicleClass, &v.Plate, &v.DriverName,
		&v.DriverPhone, &v.SeatingCapacity, &v.Available, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (p *PostgresStore) CreateVehicle(ctx context.Context, v *models.FleetVehicle) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fleet_vehicles
			(id, owner_id, vehicle_class, plate, driver_name, driver_phone, seating_capacity, available)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		v.ID, v.OwnerID, v.VehicleClass, v.Plate, v.DriverName, v.DriverPhone,
		v.SeatingCapacity, v.Available)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *PostgresStore) GetVehicle(ctx context.Context, id string) (*models.FleetVehicle, error) {
	return scanVehicle(p.db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM fleet_vehicles WHERE id = $1`, id))
}

func (p *PostgresStore) GetVehicleByPlate(ctx context.Context, plate string) (*models.FleetVehicle, error) {
	return scanVehicle(p.db.QueryRowContext(ctx,
		`SELECT `+vehicleColumns+` FROM fleet_vehicles WHERE plate = $1`, plate))
}

func (p *PostgresStore) ListVehicles(ctx context.Context, f VehicleFilter) ([]*models.FleetVehicle, error) {
	query := `SELECT ` + vehicleColumns + ` FROM fleet_vehicles`
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.OwnerID != "" {
		add("owner_id = $%d", f.OwnerID)
	}
	if f.VehicleClass != "" {
		add("vehicle_class = $%d", f.VehicleClass)
	}
	if f.Available != nil {
		add("available = $%d", *f.Available)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.FleetVehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SetVehicleAvailability(ctx context.Context, id string, available bool) (*models.FleetVehicle, error) {
	return scanVehicle(p.db.QueryRowContext(ctx, `
		UPDATE fleet_vehicles SET available = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+vehicleColumns,
		available, id))
}

func (p *PostgresStore) ClaimVehicle(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE fleet_vehicles SET available = FALSE, updated_at = NOW()
		WHERE id = $1 AND available`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if _, getErr := p.GetVehicle(ctx, id); getErr != nil {
			return getErr
		}
		return ErrVehicleUnavailable
	}
	return nil
}

func (p *PostgresStore) ReleaseVehicle(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE fleet_vehicles SET available = TRUE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ── fleet bookings ──

const bookingColumns = `id, client_name, client_phone, client_email, client_type,
	vehicle_class, num_vehicles, pickup_location, drop_location, date,
	status, booking_type, assigned_driver_id, assigned_vehicle_id, assigned_vehicles,
	customer_vehicle_make, customer_vehicle_model, customer_vehicle_plate, purpose,
	hourly_rate, duration_hours, daily_rate, duration_days, calculated_fare,
	created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (*models.FleetBooking, error) {
	var b models.FleetBooking
	var driverID, vehicleID, purpose sql.NullString
	var cvMake, cvModel, cvPlate sql.NullString
	var hourlyRate, durationHours, dailyRate, durationDays sql.NullFloat64
	var assignedVehicles pq.StringArray
	err := row.Scan(
		&b.ID, &b.ClientName, &b.ClientPhone, &b.ClientEmail, &b.ClientType,
		&b.VehicleClass, &b.NumVehicles, &b.PickupLocation, &b.DropLocation, &b.Date,
		&b.Status, &b.BookingType, &driverID, &vehicleID, &assignedVehicles,
		&cvMake, &cvModel, &cvPlate, &purpose,
		&hourlyRate, &durationHours, &dailyRate, &durationDays, &b.CalculatedFare,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b.AssignedDriverID = driverID.String
	b.AssignedVehicleID = vehicleID.String
	b.AssignedVehicles = assignedVehicles
	b.Purpose = purpose.String
	if cvMake.Valid || cvModel.Valid || cvPlate.Valid {
		b.CustomerVehicle = &models.CustomerVehicle{
			Make: cvMake.String, Model: cvModel.String, Plate: cvPlate.String,
		}
	}
	b.HourlyRate = hourlyRate.Float64
	b.DurationHours = durationHours.Float64
	b.DailyRate = dailyRate.Float64
	b.DurationDays = durationDays.Float64
	return &b, nil
}

func (p *PostgresStore) CreateBooking(ctx context.Context, b *models.FleetBooking) error {
	var cvMake, cvModel, cvPlate sql.NullString
	if b.CustomerVehicle != nil {
		cvMake = sql.NullString{String: b.CustomerVehicle.Make, Valid: true}
		cvModel = sql.NullString{String: b.CustomerVehicle.Model, Valid: true}
		cvPlate = sql.NullString{String: b.CustomerVehicle.Plate, Valid: true}
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO fleet_bookings
			(id, client_name, client_phone, client_email, client_type,
			 vehicle_class, num_vehicles, pickup_location, drop_location, date,
			 status, booking_type, assigned_driver_id, assigned_vehicle_id, assigned_vehicles,
			 customer_vehicle_make, customer_vehicle_model, customer_vehicle_plate, purpose,
			 hourly_rate, duration_hours, daily_rate, duration_days, calculated_fare)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,
		        NULLIF($13,''), NULLIF($14,''), $15,
		        $16,$17,$18, NULLIF($19,''), $20,$21,$22,$23,$24)`,
		b.ID, b.ClientName, b.ClientPhone, b.ClientEmail, b.ClientType,
		b.VehicleClass, b.NumVehicles, b.PickupLocation, b.DropLocation, b.Date,
		b.Status, b.BookingType, b.AssignedDriverID, b.AssignedVehicleID,
		pq.StringArray(b.AssignedVehicles),
		cvMake, cvModel, cvPlate, b.Purpose,
		b.HourlyRate, b.DurationHours, b.DailyRate, b.DurationDays, b.CalculatedFare)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetBooking(ctx context.Context, id string) (*models.FleetBooking, error) {
	return scanBooking(p.db.QueryRowContext(ctx,
		`SELECT `+bookingColumns+` FROM fleet_bookings WHERE id = $1`, id))
}

func (p *PostgresStore) ListBookings(ctx context.Context, status models.BookingStatus) ([]*models.FleetBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM fleet_bookings`
	var args []any
	if status != "" {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += " ORDER BY created_at DESC"
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.FleetBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (p *PostgresStore) UpdateBookingStatus(ctx context.Context, id string, status models.BookingStatus) (*models.FleetBooking, models.BookingStatus, error) {
	var prev models.BookingStatus
	err := p.db.QueryRowContext(ctx,
		`SELECT status FROM fleet_bookings WHERE id = $1`, id).Scan(&prev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	row := p.db.QueryRowContext(ctx, `
		UPDATE fleet_bookings SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3
		RETURNING `+bookingColumns,
		status, id, prev)
	b, err := scanBooking(row)
	if errors.Is(err, ErrNotFound) {
		// Raced with another status change; surface as a state conflict.
		return nil, "", ErrInvalidState
	}
	if err != nil {
		return nil, "", err
	}
	return b, prev, nil
}

// ── notifications ──

func scanNotification(row interface{ Scan(...any) error }) (*models.Notification, error) {
	var n models.Notification
	var rideID sql.NullString
	err := row.Scan(&n.ID, &n.SenderID, &n.ReceiverID, &n.Type, &rideID,
		&n.Message, &n.Read, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	n.RideID = rideID.String
	return &n, nil
}

func (p *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO notifications (id, sender_id, receiver_id, type, ride_id, message)
		VALUES ($1,$2,$3,$4, NULLIF($5,''), $6)`,
		n.ID, n.SenderID, n.ReceiverID, n.Type, n.RideID, n.Message)
	return err
}

func (p *PostgresStore) ListNotifications(ctx context.Context, receiverID string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, type, ride_id, message, is_read, created_at
		FROM notifications WHERE receiver_id = $1
		ORDER BY created_at DESC LIMIT $2`,
		receiverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (p *PostgresStore) CountUnread(ctx context.Context, receiverID string) (int, error) {
	var count int
	err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE receiver_id = $1 AND NOT is_read`,
		receiverID).Scan(&count)
	return count, err
}

func (p *PostgresStore) MarkRead(ctx context.Context, id string) (*models.Notification, error) {
	return scanNotification(p.db.QueryRowContext(ctx, `
		UPDATE notifications SET is_read = TRUE WHERE id = $1
		RETURNING id, sender_id, receiver_id, type, ride_id, message, is_read, created_at`,
		id))
}

func (p *PostgresStore) MarkAllRead(ctx context.Context, receiverID string) (int, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE receiver_id = $1 AND NOT is_read`,
		receiverID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

var _ Store = (*PostgresStore)(nil)
