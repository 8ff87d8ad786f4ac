package elasticsearch

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nimburion/esbench/pkg/config"
	"github.com/nimburion/esbench/pkg/observability/logger"
	"github.com/nimburion/esbench/pkg/testutil"
	"github.com/nimburion/esbench/pkg/ycsb"
)

const elasticsearchImage = "docker.elastic.co/elasticsearch/elasticsearch:8.19.0"

func TestAdapter_Integration(t *testing.T) {
	testutil.RequireIntegration(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        elasticsearchImage,
			ExposedPorts: []string{"9200/tcp"},
			Env: map[string]string{
				"discovery.type":         "single-node",
				"xpack.security.enabled": "false",
				"ES_JAVA_OPTS":           "-Xms512m -Xmx512m",
			},
			WaitingFor: wait.ForHTTP("/").WithPort("9200/tcp").WithStartupTimeout(120 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Elasticsearch container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	}()

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9200/tcp")
	if err != nil {
		t.Fatalf("Failed to get mapped port: %v", err)
	}

	log, err := logger.NewZapLogger(logger.Config{Level: logger.InfoLevel, Format: logger.JSONFormat})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	for _, driver := range []string{config.DriverHTTP, config.DriverElasticsearchSDK, config.DriverOpenSearchSDK} {
		t.Run(driver, func(t *testing.T) {
			props := ycsb.Properties{
				config.KeyRemote:        "true",
				config.KeyHostsList:     host + ":" + port.Port(),
				config.KeyDriver:        driver,
				config.KeyIndexKey:      "esbench-" + driver,
				config.KeyNewDB:         "true",
				config.KeyHealthTimeout: "30000",
			}
			a := New(props, WithLogger(log))
			if err := a.Init(ctx); err != nil {
				t.Fatalf("Init() error = %v", err)
			}
			defer a.Cleanup(ctx)

			t.Run("Insert and Read", func(t *testing.T) {
				status := a.Insert(ctx, "", "user1", ycsb.RecordFromStrings(map[string]string{"field0": "value"}))
				if status != ycsb.StatusOK {
					t.Fatalf("Insert() = %v", status)
				}
				record, status := a.Read(ctx, "", "user1", nil)
				if status != ycsb.StatusOK || ycsb.StringMap(record)["field0"] != "value" {
					t.Fatalf("Read() = %v, %v", ycsb.StringMap(record), status)
				}
			})

			t.Run("Update", func(t *testing.T) {
				status := a.Update(ctx, "", "user1", ycsb.RecordFromStrings(map[string]string{"field1": "new"}))
				if status != ycsb.StatusOK {
					t.Fatalf("Update() = %v", status)
				}
				record, _ := a.Read(ctx, "", "user1", nil)
				got := ycsb.StringMap(record)
				if got["field0"] != "value" || got["field1"] != "new" {
					t.Fatalf("unexpected merged record %v", got)
				}
			})

			t.Run("Scan", func(t *testing.T) {
				for i := 2; i <= 5; i++ {
					a.Insert(ctx, "", "user"+strconv.Itoa(i), ycsb.RecordFromStrings(map[string]string{"n": strconv.Itoa(i)}))
				}
				if err := a.client.Refresh(ctx, a.Config().IndexKey); err != nil {
					t.Fatalf("Refresh() error = %v", err)
				}
				records, status := a.Scan(ctx, "", "user2", 3, []string{"n"})
				if status != ycsb.StatusOK || len(records) != 3 {
					t.Fatalf("Scan() = %d records, %v", len(records), status)
				}
				if ycsb.StringMap(records[0])["n"] != "2" {
					t.Fatalf("unexpected first record %v", ycsb.StringMap(records[0]))
				}
			})

			t.Run("Delete", func(t *testing.T) {
				if status := a.Delete(ctx, "", "user1"); status != ycsb.StatusOK {
					t.Fatalf("Delete() = %v", status)
				}
				if _, status := a.Read(ctx, "", "user1", nil); status != ycsb.StatusNotFound {
					t.Fatalf("Read() after delete = %v", status)
				}
				if status := a.Delete(ctx, "", "user1"); status != ycsb.StatusNotFound {
					t.Fatalf("second Delete() = %v", status)
				}
			})
		})
	}
}
