package database

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/travigo/fareharvest/pkg/ctdf"
	"gorm.io/gorm"
)

type journeyRecord struct {
	ID          uint   `gorm:"primaryKey"`
	Fingerprint string `gorm:"size:40;uniqueIndex;not null"`

	OriginCode      string `gorm:"size:3;index:idx_journeys_route"`
	OriginName      string
	DestinationCode string `gorm:"size:3;index:idx_journeys_route"`
	DestinationName string

	DepartureTime   time.Time `gorm:"index"`
	ArrivalTime     time.Time
	DurationSeconds int64

	Changes int

	Fares []fareRecord `gorm:"foreignKey:JourneyID"`
}

func (journeyRecord) TableName() string {
	return "journeys"
}

type fareRecord struct {
	ID        uint           `gorm:"primaryKey"`
	JourneyID uint           `gorm:"index;not null"`
	Journey   *journeyRecord `gorm:"constraint:OnDelete:CASCADE"`

	Price decimal.Decimal `gorm:"type:numeric(10,2)"`

	CarrierCode string
	CarrierName string

	Type        string
	Flexibility string
	Permission  string

	Timestamp time.Time `gorm:"index"`
}

func (fareRecord) TableName() string {
	return "fares"
}

func newJourneyRecord(journey *ctdf.Journey) *journeyRecord {
	return &journeyRecord{
		Fingerprint:     journey.Fingerprint,
		OriginCode:      journey.OriginCode,
		OriginName:      journey.OriginName,
		DestinationCode: journey.DestinationCode,
		DestinationName: journey.DestinationName,
		DepartureTime:   journey.DepartureTime,
		ArrivalTime:     journey.ArrivalTime,
		DurationSeconds: int64(time.Duration(journey.Duration).Seconds()),
		Changes:         journey.Changes,
	}
}

func (r *journeyRecord) toJourney() *ctdf.Journey {
	journey := &ctdf.Journey{
		ID:              formatRecordID(r.ID),
		Fingerprint:     r.Fingerprint,
		OriginCode:      r.OriginCode,
		OriginName:      r.OriginName,
		DestinationCode: r.DestinationCode,
		DestinationName: r.DestinationName,
		DepartureTime:   r.DepartureTime.UTC(),
		ArrivalTime:     r.ArrivalTime.UTC(),
		Duration:        ctdf.Duration(time.Duration(r.DurationSeconds) * time.Second),
		Changes:         r.Changes,
	}

	for i := range r.Fares {
		journey.Fares = append(journey.Fares, r.Fares[i].toFare())
	}
	journey.SortFares()

	return journey
}

func newFareRecord(fare *ctdf.Fare, journeyID uint) *fareRecord {
	return &fareRecord{
		JourneyID:   journeyID,
		Price:       fare.Price,
		CarrierCode: fare.CarrierCode,
		CarrierName: fare.CarrierName,
		Type:        fare.Type,
		Flexibility: fare.Flexibility,
		Permission:  fare.Permission,
		Timestamp:   fare.Timestamp,
	}
}

func (r *fareRecord) toFare() *ctdf.Fare {
	fare := &ctdf.Fare{
		ID:          formatRecordID(r.ID),
		JourneyRef:  formatRecordID(r.JourneyID),
		Price:       r.Price,
		CarrierCode: r.CarrierCode,
		CarrierName: r.CarrierName,
		Type:        r.Type,
		Flexibility: r.Flexibility,
		Permission:  r.Permission,
		Timestamp:   r.Timestamp.Local(),
	}

	if r.Journey != nil {
		fare.Journey = r.Journey.toJourney()
	}

	return fare
}

func formatRecordID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func parseRecordID(id string) (uint, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

// GormStore keeps journeys and fares in two relational tables joined by
// journey id
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) FindJourneyByFingerprint(ctx context.Context, fingerprint string) (*ctdf.Journey, error) {
	var record journeyRecord

	err := s.DB.WithContext(ctx).Where("fingerprint = ?", fingerprint).Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return record.toJourney(), nil
}

func (s *GormStore) ListFaresForJourney(ctx context.Context, journeyID string) ([]*ctdf.Fare, error) {
	id, ok := parseRecordID(journeyID)
	if !ok {
		return nil, ctdf.ErrNotFound
	}

	var records []fareRecord
	err := s.DB.WithContext(ctx).Where("journey_id = ?", id).Order("timestamp").Find(&records).Error
	if err != nil {
		return nil, err
	}

	fares := make([]*ctdf.Fare, 0, len(records))
	for i := range records {
		fares = append(fares, records[i].toFare())
	}

	return fares, nil
}

func (s *GormStore) CreateJourneyWithFare(ctx context.Context, journey *ctdf.Journey, fare *ctdf.Fare) (string, string, error) {
	journeyRow := newJourneyRecord(journey)
	var fareRow *fareRecord

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(journeyRow).Error; err != nil {
			return err
		}

		fareRow = newFareRecord(fare, journeyRow.ID)

		return tx.Create(fareRow).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return "", "", ctdf.ErrDuplicateFingerprint
	} else if err != nil {
		return "", "", err
	}

	return formatRecordID(journeyRow.ID), formatRecordID(fareRow.ID), nil
}

func (s *GormStore) AppendFare(ctx context.Context, journeyID string, fare *ctdf.Fare) (string, error) {
	id, ok := parseRecordID(journeyID)
	if !ok {
		return "", ctdf.ErrNotFound
	}

	record := newFareRecord(fare, id)

	err := s.DB.WithContext(ctx).Create(record).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return "", ctdf.ErrNotFound
	} else if err != nil {
		return "", err
	}

	return formatRecordID(record.ID), nil
}

func (s *GormStore) GetJourney(ctx context.Context, id string) (*ctdf.Journey, error) {
	recordID, ok := parseRecordID(id)
	if !ok {
		return nil, ctdf.ErrNotFound
	}

	var record journeyRecord
	err := s.DB.WithContext(ctx).Preload("Fares").Take(&record, recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ctdf.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return record.toJourney(), nil
}

func (s *GormStore) QueryJourneys(ctx context.Context, filter JourneyFilter) ([]*ctdf.Journey, error) {
	query := applyJourneyFilter(s.DB.WithContext(ctx), filter, "journeys").
		Preload("Fares").
		Order("journeys.departure_time")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []journeyRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	journeys := make([]*ctdf.Journey, 0, len(records))
	for i := range records {
		journeys = append(journeys, records[i].toJourney())
	}

	return journeys, nil
}

func (s *GormStore) QueryFares(ctx context.Context, filter FareFilter) ([]*ctdf.Fare, error) {
	query := s.DB.WithContext(ctx).
		Joins("JOIN journeys ON journeys.id = fares.journey_id").
		Preload("Journey")
	query = applyJourneyFilter(query, filter.JourneyFilter, "journeys")

	if filter.JourneyID != "" {
		id, ok := parseRecordID(filter.JourneyID)
		if !ok {
			return []*ctdf.Fare{}, nil
		}
		query = query.Where("fares.journey_id = ?", id)
	}
	if filter.Type != "" {
		query = query.Where("fares.type = ?", filter.Type)
	}
	if filter.Flexibility != "" {
		query = query.Where("fares.flexibility = ?", filter.Flexibility)
	}
	if filter.Permission != "" {
		query = query.Where("fares.permission = ?", filter.Permission)
	}
	if filter.CarrierCode != "" {
		query = query.Where("fares.carrier_code = ?", filter.CarrierCode)
	}

	query = query.Order("journeys.departure_time").Order("fares.timestamp")
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []fareRecord
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	fares := make([]*ctdf.Fare, 0, len(records))
	for i := range records {
		fares = append(fares, records[i].toFare())
	}

	return fares, nil
}

func (s *GormStore) GetFare(ctx context.Context, id string) (*ctdf.Fare, error) {
	recordID, ok := parseRecordID(id)
	if !ok {
		return nil, ctdf.ErrNotFound
	}

	var record fareRecord
	err := s.DB.WithContext(ctx).Preload("Journey").Take(&record, recordID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ctdf.ErrNotFound
	} else if err != nil {
		return nil, err
	}

	return record.toFare(), nil
}

func applyJourneyFilter(query *gorm.DB, filter JourneyFilter, table string) *gorm.DB {
	if filter.OriginCode != "" {
		query = query.Where(table+".origin_code = ?", filter.OriginCode)
	}
	if filter.DestinationCode != "" {
		query = query.Where(table+".destination_code = ?", filter.DestinationCode)
	}
	if filter.Changes != nil {
		query = query.Where(table+".changes = ?", *filter.Changes)
	}
	if !filter.Date.IsZero() {
		start, end := filter.dayBounds()
		query = query.Where(table+".departure_time >= ? AND "+table+".departure_time < ?", start, end)
	}

	return query
}
