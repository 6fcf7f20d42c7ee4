package commands

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/mapping/internal/introspect"
	"github.com/conduit-lang/mapping/internal/mapping"
	"github.com/conduit-lang/mapping/internal/rdbms"
)

const salesDomain = `types:
  - name: Sales.Customer
    table: Customer
    properties:
      - name: Name
        kind: string
        max_length: 100
      - name: Orders
        relation:
          target: Sales.Order
          opposite: Customer
          collection: true
          sort_expression: OrderNumber desc
  - name: Sales.Order
    table: Order
    properties:
      - name: OrderNumber
        kind: int32
      - name: Customer
        relation:
          target: Sales.Customer
          opposite: Orders
          mandatory: true
`

const officialDomain = `types:
  - name: Sales.Official
    table: Official
    properties:
      - name: Name
        kind: string
        max_length: 100
`

const manyToManyDomain = `types:
  - name: Test.A
    table: A
    properties:
      - name: Bs
        relation:
          target: Test.B
          opposite: As
          collection: true
  - name: Test.B
    table: B
    properties:
      - name: As
        relation:
          target: Test.A
          opposite: Bs
          collection: true
`

const testSecret = "0123456789abcdef0123"

// workspace writes mapping.yaml next to the domain file and returns the
// path of mapping.yaml
func workspace(t *testing.T, domain string, extraConfig string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "domain.yaml"), []byte(domain), 0o644))

	config := `domain:
  files: [domain.yaml]
storage:
  providers:
    - name: default
      dialect: postgres
      dsn: postgres://localhost/mapping
` + extraConfig
	path := filepath.Join(dir, "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(config), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--no-color"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func stubDatabase(t *testing.T) (sqlmock.Sqlmock, *[]string) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	drivers := &[]string{}
	original := openDatabase
	openDatabase = func(driverName, dsn string) (*sql.DB, error) {
		*drivers = append(*drivers, driverName)
		return db, nil
	}
	t.Cleanup(func() { openDatabase = original })
	return mock, drivers
}

func TestRootCommand_Subcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range NewRootCommand().Commands() {
		names = append(names, cmd.Name())
	}
	for _, name := range []string{"version", "validate", "inspect", "ddl", "verify", "serve", "token"} {
		assert.Contains(t, names, name)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "mapping version: dev")
	assert.Contains(t, stdout, "Go version: go")
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid mapping", func(t *testing.T) {
		config := workspace(t, salesDomain, "")
		stdout, _, err := execute(t, "validate", "--config", config)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Mapping valid: 2 types, 1 relations, 2 storage entities")
	})

	t.Run("rejected mapping", func(t *testing.T) {
		config := workspace(t, manyToManyDomain, "")
		_, stderr, err := execute(t, "validate", "--config", config)
		require.Error(t, err)

		var reported *reportedError
		assert.True(t, errors.As(err, &reported))
		assert.Contains(t, stderr, "many-to-many relation, which is not supported")
	})

	t.Run("json output", func(t *testing.T) {
		config := workspace(t, manyToManyDomain, "")
		stdout, _, err := execute(t, "validate", "--config", config, "--format", "json")
		require.Error(t, err)

		var result validateResult
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		assert.False(t, result.Valid)
		assert.NotEmpty(t, result.Failures)
		assert.NotEmpty(t, result.Error)
	})

	t.Run("json output of a valid mapping", func(t *testing.T) {
		config := workspace(t, salesDomain, "")
		stdout, _, err := execute(t, "validate", "--config", config, "--format", "json")
		require.NoError(t, err)

		var result validateResult
		require.NoError(t, json.Unmarshal([]byte(stdout), &result))
		assert.True(t, result.Valid)
		require.NotNil(t, result.Configuration)
		assert.Equal(t, 2, result.Configuration.Classes)
	})

	t.Run("domain flag overrides config", func(t *testing.T) {
		config := workspace(t, manyToManyDomain, "")
		official := filepath.Join(t.TempDir(), "official.yaml")
		require.NoError(t, os.WriteFile(official, []byte(officialDomain), 0o644))

		stdout, _, err := execute(t, "validate", "--config", config, "--domain", official)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Mapping valid: 1 types, 0 relations, 1 storage entities")
	})

	t.Run("invalid format", func(t *testing.T) {
		config := workspace(t, salesDomain, "")
		_, _, err := execute(t, "validate", "--config", config, "--format", "xml")
		assert.EqualError(t, err, `invalid format "xml" (supported: table, json)`)
	})

	t.Run("broken config", func(t *testing.T) {
		config := workspace(t, salesDomain, "server:\n  port: 70000\n")
		_, stderr, err := execute(t, "validate", "--config", config)
		require.Error(t, err)
		assert.Contains(t, stderr, "server.port must be between 1 and 65535, got: 70000")
	})
}

func TestInspectCommand(t *testing.T) {
	config := workspace(t, salesDomain, "")

	t.Run("types", func(t *testing.T) {
		stdout, _, err := execute(t, "inspect", "types", "--config", config)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Sales.Customer")
		assert.Contains(t, stdout, "Customer (table)")
	})

	t.Run("types as json", func(t *testing.T) {
		stdout, _, err := execute(t, "inspect", "types", "--config", config, "--format", "json", "--kind", "class")
		require.NoError(t, err)

		var summaries []introspect.TypeSummary
		require.NoError(t, json.Unmarshal([]byte(stdout), &summaries))
		require.Len(t, summaries, 2)
		assert.Equal(t, "Sales.Customer", summaries[0].Name)
		assert.Equal(t, "default", summaries[0].Provider)
	})

	t.Run("invalid kind", func(t *testing.T) {
		_, _, err := execute(t, "inspect", "types", "--config", config, "--kind", "enum")
		assert.EqualError(t, err, `invalid kind "enum" (supported: class, interface)`)
	})

	t.Run("type", func(t *testing.T) {
		stdout, _, err := execute(t, "inspect", "type", "Sales.Customer", "--config", config)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Sales.Customer.Name")
		assert.Contains(t, stdout, "Sales.Customer.Orders")
	})

	t.Run("unknown type suggests close names", func(t *testing.T) {
		_, stderr, err := execute(t, "inspect", "type", "Sales.Custmer", "--config", config)
		require.Error(t, err)
		assert.True(t, errors.Is(err, mapping.ErrNotFound))
		assert.Contains(t, stderr, "Cannot find type 'Sales.Custmer'.")
		assert.Contains(t, stderr, "Sales.Customer")
	})

	t.Run("relation", func(t *testing.T) {
		stdout, _, err := execute(t, "inspect", "relation", "Sales.Order:Sales.Order.Customer->Sales.Customer.Orders", "--config", config)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Kind: one_to_many")
	})

	t.Run("unknown relation", func(t *testing.T) {
		_, stderr, err := execute(t, "inspect", "relation", "Sales.Order:Sales.Order.Buyer", "--config", config)
		require.Error(t, err)
		assert.Contains(t, stderr, "Cannot find relation 'Sales.Order:Sales.Order.Buyer'.")
	})

	t.Run("entities as json", func(t *testing.T) {
		stdout, _, err := execute(t, "inspect", "entities", "--config", config, "--format", "json")
		require.NoError(t, err)

		var entities []introspect.EntityView
		require.NoError(t, json.Unmarshal([]byte(stdout), &entities))
		require.Len(t, entities, 2)
		assert.Equal(t, "Customer", entities[0].Name)
		assert.Equal(t, "table", entities[0].Kind)
		assert.Equal(t, rdbms.IDColumnName, entities[0].Columns[0].Name)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, _, err := execute(t, "inspect", "entities", "--config", config, "--provider", "reporting")
		assert.EqualError(t, err, "storage provider 'reporting' not found")
	})
}

func TestDDLCommand(t *testing.T) {
	config := workspace(t, salesDomain, "")

	t.Run("stdout", func(t *testing.T) {
		stdout, _, err := execute(t, "ddl", "--config", config)
		require.NoError(t, err)
		assert.Contains(t, stdout, `CREATE TABLE IF NOT EXISTS "Customer" (`)
		assert.Contains(t, stdout, `CREATE TABLE IF NOT EXISTS "Order" (`)
		assert.NotContains(t, stdout, "DROP")
	})

	t.Run("drop first", func(t *testing.T) {
		stdout, _, err := execute(t, "ddl", "--config", config, "--drop")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(stdout, `DROP TABLE IF EXISTS "Order";`))
		assert.Less(t, strings.Index(stdout, "DROP TABLE"), strings.Index(stdout, "CREATE TABLE"))
	})

	t.Run("output file", func(t *testing.T) {
		output := filepath.Join(t.TempDir(), "schema", "default.sql")
		stdout, _, err := execute(t, "ddl", "--config", config, "--output", output)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Wrote "+output)

		data, err := os.ReadFile(output)
		require.NoError(t, err)
		assert.Contains(t, string(data), `CREATE TABLE IF NOT EXISTS "Order" (`)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, _, err := execute(t, "ddl", "--config", config, "--provider", "reporting")
		assert.EqualError(t, err, "storage provider 'reporting' not found")
	})

	t.Run("apply and output", func(t *testing.T) {
		_, _, err := execute(t, "ddl", "--config", config, "--apply", "--output", "schema.sql")
		assert.EqualError(t, err, "--apply and --output cannot be combined")
	})
}

func TestDDLCommand_Apply(t *testing.T) {
	config := workspace(t, salesDomain, "")

	t.Run("applies in one transaction", func(t *testing.T) {
		mock, drivers := stubDatabase(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "Customer"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "Order"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		stdout, _, err := execute(t, "ddl", "--config", config, "--apply")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Applied 2 statements to provider default")
		assert.Equal(t, []string{"pgx"}, *drivers)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("drop asks for confirmation", func(t *testing.T) {
		_, drivers := stubDatabase(t)
		original := confirm
		var asked string
		confirm = func(message string) (bool, error) {
			asked = message
			return false, nil
		}
		t.Cleanup(func() { confirm = original })

		stdout, _, err := execute(t, "ddl", "--config", config, "--apply", "--drop")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Cancelled")
		assert.Equal(t, "Drop and recreate every table and view of provider default?", asked)
		assert.Empty(t, *drivers, "nothing is opened when cancelled")
	})

	t.Run("drop with yes", func(t *testing.T) {
		mock, _ := stubDatabase(t)
		original := confirm
		confirm = func(string) (bool, error) {
			t.Fatal("confirmation must be skipped")
			return false, nil
		}
		t.Cleanup(func() { confirm = original })

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "Order";`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`DROP TABLE IF EXISTS "Customer";`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "Customer"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "Order"`)).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		stdout, _, err := execute(t, "ddl", "--config", config, "--apply", "--drop", "--yes")
		require.NoError(t, err)
		assert.Contains(t, stdout, "Applied 4 statements to provider default")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed statement", func(t *testing.T) {
		mock, _ := stubDatabase(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS "Customer"`)).WillReturnError(errors.New("permission denied"))
		mock.ExpectRollback()

		_, _, err := execute(t, "ddl", "--config", config, "--apply")
		assert.EqualError(t, err, "failed to apply DDL to provider default: statement 1 failed: permission denied")
	})

	t.Run("provider without dsn", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "domain.yaml"), []byte(salesDomain), 0o644))
		path := filepath.Join(dir, "mapping.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`domain:
  files: [domain.yaml]
storage:
  providers:
    - name: default
      dialect: sqlite
`), 0o644))

		_, _, err := execute(t, "ddl", "--config", path, "--apply")
		assert.EqualError(t, err, "storage provider default has no dsn configured")
	})
}

func TestVerifyCommand(t *testing.T) {
	query := regexp.QuoteMeta(rdbms.NewPostgresDialect().ColumnsQuery())

	t.Run("schema matches", func(t *testing.T) {
		config := workspace(t, officialDomain, "")
		mock, drivers := stubDatabase(t)
		mock.ExpectQuery(query).WithArgs("Official").
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
				AddRow("ID").AddRow("ClassID").AddRow("Timestamp").AddRow("Name"))

		stdout, _, err := execute(t, "verify", "--config", config)
		require.NoError(t, err)
		assert.Contains(t, stdout, "Provider default matches the mapping")
		assert.Equal(t, []string{"pgx"}, *drivers)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing tables", func(t *testing.T) {
		config := workspace(t, salesDomain, "")
		mock, _ := stubDatabase(t)
		mock.ExpectQuery(query).WithArgs("Customer").WillReturnRows(sqlmock.NewRows([]string{"column_name"}))
		mock.ExpectQuery(query).WithArgs("Order").WillReturnRows(sqlmock.NewRows([]string{"column_name"}))

		stdout, _, err := execute(t, "verify", "--config", config)
		require.Error(t, err)
		assert.EqualError(t, err, "2 schema mismatches found")
		assert.Contains(t, stdout, "Provider default has 2 mismatches")
		assert.Contains(t, stdout, "Customer: table does not exist")
		assert.Contains(t, stdout, "Order: table does not exist")
	})

	t.Run("database error", func(t *testing.T) {
		config := workspace(t, officialDomain, "")
		mock, _ := stubDatabase(t)
		mock.ExpectQuery(query).WithArgs("Official").WillReturnError(errors.New("connection reset"))

		_, _, err := execute(t, "verify", "--config", config)
		assert.EqualError(t, err, "failed to read columns of Official: connection reset")
	})

	t.Run("unknown provider", func(t *testing.T) {
		config := workspace(t, officialDomain, "")
		_, _, err := execute(t, "verify", "--config", config, "--provider", "reporting")
		assert.EqualError(t, err, "storage provider reporting is not configured")
	})

	t.Run("lib/pq driver", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "domain.yaml"), []byte(officialDomain), 0o644))
		path := filepath.Join(dir, "mapping.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`domain:
  files: [domain.yaml]
storage:
  providers:
    - name: default
      dialect: postgres
      driver: postgres
      dsn: postgres://localhost/mapping
`), 0o644))

		mock, drivers := stubDatabase(t)
		mock.ExpectQuery(query).WithArgs("Official").
			WillReturnRows(sqlmock.NewRows([]string{"column_name"}).
				AddRow("ID").AddRow("ClassID").AddRow("Timestamp").AddRow("Name"))

		_, _, err := execute(t, "verify", "--config", path)
		require.NoError(t, err)
		assert.Equal(t, []string{"postgres"}, *drivers)
	})
}

func TestTokenCommand(t *testing.T) {
	t.Run("issues a reload token", func(t *testing.T) {
		config := workspace(t, salesDomain, "server:\n  token_secret: "+testSecret+"\n")
		stdout, _, err := execute(t, "token", "--config", config, "--subject", "ci", "--ttl", "10m")
		require.NoError(t, err)

		authority, err := introspect.NewTokenAuthority(testSecret)
		require.NoError(t, err)
		claims, err := authority.Authorize(strings.TrimSpace(stdout), introspect.ReloadScope)
		require.NoError(t, err)
		assert.Equal(t, "ci", claims["sub"])
	})

	t.Run("requires a secret", func(t *testing.T) {
		config := workspace(t, salesDomain, "")
		_, _, err := execute(t, "token", "--config", config)
		assert.EqualError(t, err, "server.token_secret is not configured")
	})

	t.Run("rejects non-positive ttl", func(t *testing.T) {
		config := workspace(t, salesDomain, "server:\n  token_secret: "+testSecret+"\n")
		_, _, err := execute(t, "token", "--config", config, "--ttl", "0s")
		assert.EqualError(t, err, "ttl must be positive, got: 0s")
	})
}
