package driver

// IndexQueries create the lookup indices of the negotiation memory.
var IndexQueries = []string{
	"CREATE INDEX ON :Strategy(uuid);",
	"CREATE INDEX ON :Strategy(bill_type);",
	"CREATE INDEX ON :Outcome(uuid);",
	"CREATE INDEX ON :Outcome(bill_type);",
	"CREATE INDEX ON :Company(name);",
}

const (
	SaveStrategyQuery = `
		MERGE (s:Strategy {uuid: $uuid})
		SET s.bill_type = $bill_type,
			s.company = $company,
			s.amount = $amount,
			s.confidence = $confidence,
			s.execution_mode = $execution_mode,
			s.strategy = $strategy,
			s.script = $script,
			s.target_percentage = $target_percentage,
			s.target_savings = $target_savings,
			s.user_id = $user_id,
			s.created_at = $created_at,
			s.embedding = $embedding
		MERGE (c:Company {name: $company})
		MERGE (c)-[:HAS_STRATEGY]->(s)
		RETURN s.uuid AS uuid
	`

	SaveOutcomeQuery = `
		MERGE (o:Outcome {uuid: $uuid})
		SET o.negotiation_id = $negotiation_id,
			o.bill_type = $bill_type,
			o.company = $company,
			o.original_amount = $original_amount,
			o.final_amount = $final_amount,
			o.savings_amount = $savings_amount,
			o.savings_percentage = $savings_percentage,
			o.success = $success,
			o.notes = $notes,
			o.user_id = $user_id,
			o.created_at = $created_at
		MERGE (c:Company {name: $company})
		MERGE (c)-[:HAS_OUTCOME]->(o)
		WITH o
		OPTIONAL MATCH (s:Strategy {uuid: $negotiation_id})
		FOREACH (x IN CASE WHEN s IS NULL THEN [] ELSE [s] END | MERGE (x)-[:RESULTED_IN]->(o))
		RETURN o.uuid AS uuid
	`

	GetStrategiesByBillTypeQuery = `
		MATCH (s:Strategy)
		WHERE $bill_type = "" OR s.bill_type = $bill_type
		RETURN s.uuid AS uuid, s.bill_type AS bill_type, s.company AS company,
			s.amount AS amount, s.confidence AS confidence, s.execution_mode AS execution_mode,
			s.strategy AS strategy, s.target_percentage AS target_percentage,
			s.created_at AS created_at, s.embedding AS embedding
		ORDER BY s.created_at DESC
		LIMIT $limit
	`

	GetCompanyProfileQuery = `
		MATCH (c:Company {name: $company})
		OPTIONAL MATCH (c)-[:HAS_STRATEGY]->(s:Strategy)
		WITH c, count(s) AS strategies
		OPTIONAL MATCH (c)-[:HAS_OUTCOME]->(o:Outcome)
		RETURN strategies, count(o) AS outcomes,
			avg(o.savings_percentage) AS avg_savings_percentage,
			avg(o.final_amount) AS avg_final_amount
	`

	GetStatsQuery = `
		OPTIONAL MATCH (s:Strategy)
		WITH count(s) AS strategies
		OPTIONAL MATCH (o:Outcome)
		WITH strategies, count(o) AS outcomes
		OPTIONAL MATCH (c:Company)
		RETURN strategies, outcomes, count(c) AS companies
	`
)
