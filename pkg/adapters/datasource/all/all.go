// Package all registers every built-in datasource adapter. Import it for side effects.
// Individual engines can be left out of a build with the no_<engine> build tags.
package all

import (
	_ "github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource/bigquery"
	_ "github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource/clickhouse"
	_ "github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource/databricks"
	_ "github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-dataagents/pkg/adapters/datasource/snowflake"
)
