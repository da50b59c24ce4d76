package inventory

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"inventory-backend/internal/report"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

// ===== Service本体 =====

type Service struct {
	store *Store
	clock Clock
	log   *zap.Logger
}

func NewService(store *Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: store, clock: realClock{}, log: log}
}

// ReportFilename: InventoryReport-DD-MM-YYYY_HH-MM.<ext>
func ReportFilename(t time.Time, ext string) string {
	return "InventoryReport-" + t.Format("02-01-2006_15-04") + "." + ext
}

func (s *Service) ListInventory(ctx context.Context, q ListQuery) (ListResponse, error) {
	res, err := s.store.List(ctx, q)
	if err != nil {
		s.log.Error("failed to get inventory", zap.Error(err))
		return ListResponse{}, ErrInternal("failed to retrieve inventory data")
	}
	out := ListResponse{Data: make([]ItemResponse, 0, len(res.Records)), TotalPages: res.TotalPages}
	for _, r := range res.Records {
		out.Data = append(out.Data, toResponse(r))
	}
	return out, nil
}

func (s *Service) GetInventoryItem(ctx context.Context, id int64) (ItemResponse, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ItemResponse{}, ErrNotFound("inventory item not found")
		}
		s.log.Error("failed to get inventory item", zap.Int64("id", id), zap.Error(err))
		return ItemResponse{}, ErrInternal("failed to retrieve inventory item")
	}
	return toResponse(*r), nil
}

// 登録
func (s *Service) CreateInventoryItem(ctx context.Context, req ItemRequest) (ItemResponse, error) {
	f, err := validate(req)
	if err != nil {
		return ItemResponse{}, err
	}
	id, err := s.store.Insert(ctx, f)
	if err != nil {
		s.log.Error("failed to add inventory item", zap.Error(err))
		return ItemResponse{}, ErrInternal("failed to add item to inventory")
	}
	s.log.Info("inventory item added", zap.Int64("id", id))
	return toResponse(Record{ID: id, Fields: f}), nil
}

// 更新: 存在しない id でも成功扱い
func (s *Service) UpdateInventoryItem(ctx context.Context, id int64, req ItemRequest) error {
	f, err := validate(req)
	if err != nil {
		return err
	}
	if err := s.store.Update(ctx, id, f); err != nil {
		s.log.Error("failed to update inventory item", zap.Int64("id", id), zap.Error(err))
		return ErrInternal("failed to update item")
	}
	return nil
}

// 削除: 存在しない id でも成功扱い
func (s *Service) DeleteInventoryItem(ctx context.Context, id int64) error {
	if err := s.store.Delete(ctx, id); err != nil {
		s.log.Error("failed to delete inventory item", zap.Int64("id", id), zap.Error(err))
		return ErrInternal("failed to delete item from inventory")
	}
	return nil
}

// ExportInventory は全件を xlsx にする。途中で失敗したら何も返さない。
func (s *Service) ExportInventory(ctx context.Context) (*Export, error) {
	rows, err := s.reportRows(ctx)
	if err != nil {
		return nil, err
	}

	f, err := report.Generate(rows)
	if err != nil {
		s.log.Error("failed to build inventory report", zap.Error(err))
		return nil, ErrInternal("failed to export inventory data")
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		s.log.Error("failed to write inventory report", zap.Error(err))
		return nil, ErrInternal("failed to export inventory data")
	}

	return &Export{
		Filename:    ReportFilename(s.clock.Now(), report.XLSXExtension),
		ContentType: report.XLSXContentType,
		Body:        buf.Bytes(),
	}, nil
}

func (s *Service) ExportInventoryCSV(ctx context.Context, encoding string) (*Export, error) {
	enc, err := report.ParseEncoding(encoding)
	if err != nil {
		return nil, ErrInvalid(err.Error())
	}
	rows, err := s.reportRows(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows, enc); err != nil {
		s.log.Error("failed to write inventory csv", zap.Error(err))
		return nil, ErrInternal("failed to export inventory data")
	}

	return &Export{
		Filename:    ReportFilename(s.clock.Now(), report.CSVExtension),
		ContentType: enc.ContentType(),
		Body:        buf.Bytes(),
	}, nil
}

func (s *Service) reportRows(ctx context.Context) ([]report.Row, error) {
	recs, err := s.store.All(ctx)
	if err != nil {
		s.log.Error("failed to read inventory for export", zap.Error(err))
		return nil, ErrInternal("failed to export inventory data")
	}
	rows := make([]report.Row, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, report.Row{
			ID:           r.ID,
			Model:        r.Model,
			CurrentUser:  r.CurrentUser,
			PreviousUser: r.PreviousUser.String,
			TransferDate: r.TransferDate,
			Condition:    r.Condition.String,
			Notes:        r.Notes.String,
		})
	}
	return rows, nil
}

// validate: 必須項目（model / currentUser / transferDate）が空ならストアに渡さない
func validate(req ItemRequest) (Fields, error) {
	if strings.TrimSpace(req.Model) == "" ||
		strings.TrimSpace(req.CurrentUser) == "" ||
		strings.TrimSpace(req.TransferDate) == "" {
		return Fields{}, ErrInvalid("missing required fields: model, currentUser, transferDate")
	}
	return Fields{
		Model:        req.Model,
		PreviousUser: nullStr(req.PreviousUser),
		CurrentUser:  req.CurrentUser,
		TransferDate: req.TransferDate,
		Condition:    nullStr(req.Condition),
		Notes:        nullStr(req.Notes),
	}, nil
}
