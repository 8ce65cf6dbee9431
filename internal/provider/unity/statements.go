package unity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"bricksync/internal/domain"
)

// Row is one statement result row keyed by lower-cased column name.
type Row map[string]string

// Statement states reported by the SQL Statement Execution API.
const (
	statePending   = "PENDING"
	stateRunning   = "RUNNING"
	stateSucceeded = "SUCCEEDED"
)

type statementRequest struct {
	Statement   string `json:"statement"`
	WarehouseID string `json:"warehouse_id"`
	WaitTimeout string `json:"wait_timeout"`
	Disposition string `json:"disposition"`
	Format      string `json:"format"`
}

type statementResponse struct {
	StatementID string `json:"statement_id"`
	Status      struct {
		State string `json:"state"`
		Error *struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		} `json:"error"`
	} `json:"status"`
	Manifest struct {
		Schema struct {
			Columns []struct {
				Name string `json:"name"`
			} `json:"columns"`
		} `json:"schema"`
	} `json:"manifest"`
	Result struct {
		DataArray [][]*string `json:"data_array"`
	} `json:"result"`
}

func (r *statementResponse) done() bool {
	return r.Status.State != statePending && r.Status.State != stateRunning
}

func (r *statementResponse) rows() []Row {
	out := make([]Row, 0, len(r.Result.DataArray))
	for _, values := range r.Result.DataArray {
		row := make(Row, len(values))
		for i, v := range values {
			if i >= len(r.Manifest.Schema.Columns) {
				break
			}
			if v != nil {
				row[strings.ToLower(r.Manifest.Schema.Columns[i].Name)] = *v
			}
		}
		out = append(out, row)
	}
	return out
}

// execute runs one SQL statement on the configured warehouse, polling until
// it leaves the PENDING and RUNNING states.
func (p *Provider) execute(ctx context.Context, stmt string) ([]Row, error) {
	if p.config.WarehouseID == "" {
		return nil, domain.ErrConfig("provider %s: warehouse_id is required to run SQL", p.name)
	}
	p.logger.Debug("executing statement", "sql", stmt)

	var resp statementResponse
	err := p.do(ctx, http.MethodPost, "/api/2.0/sql/statements", statementRequest{
		Statement:   stmt,
		WarehouseID: p.config.WarehouseID,
		WaitTimeout: "30s",
		Disposition: "INLINE",
		Format:      "JSON_ARRAY",
	}, &resp)
	if err != nil {
		return nil, err
	}

	for !resp.done() {
		select {
		case <-ctx.Done():
			p.cancel(resp.StatementID)
			return nil, ctx.Err()
		case <-time.After(p.config.PollInterval):
		}
		id := resp.StatementID
		resp = statementResponse{}
		if err := p.get(ctx, "/api/2.0/sql/statements/"+id, nil, &resp); err != nil {
			return nil, err
		}
	}

	if resp.Status.State != stateSucceeded {
		msg := "statement " + strings.ToLower(resp.Status.State)
		if e := resp.Status.Error; e != nil {
			msg = e.Message
		}
		return nil, mapStatementError(msg)
	}
	return resp.rows(), nil
}

// cancel asks the warehouse to stop a statement after the caller gave up.
func (p *Provider) cancel(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.do(ctx, http.MethodPost, "/api/2.0/sql/statements/"+id+"/cancel", nil, nil); err != nil {
		p.logger.Warn("cancel statement failed", "statement_id", id, "error", err)
	}
}

func mapStatementError(msg string) error {
	upper := strings.ToUpper(msg)
	switch {
	case strings.Contains(upper, "DOES NOT MATCH THE TABLE UUID"):
		return &domain.StalePointerError{Message: msg}
	case strings.Contains(upper, "NOT_FOUND") || strings.Contains(upper, "DOES NOT EXIST") || strings.Contains(upper, "CANNOT BE FOUND"):
		return domain.ErrNotFound("%s", msg)
	case strings.Contains(upper, "ALREADY_EXISTS") || strings.Contains(upper, "ALREADY EXISTS"):
		return domain.ErrConflict("%s", msg)
	default:
		return fmt.Errorf("databricks statement failed: %s", msg)
	}
}
