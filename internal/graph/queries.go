package graph

// Schema: (JobCode)-[:REQUIRES]->(KSA)-[:ALIGNS_TO]->(TaxonomySkill),
// (KSA)-[:EXTRACTED_FROM]->(SourceDoc). KSA nodes are keyed by content_sig
// so re-ingesting the same fact can only ever match the existing node.

var constraintStatements = []string{
	`CREATE CONSTRAINT jobcode_code_unique IF NOT EXISTS
	 FOR (j:JobCode) REQUIRE j.code IS UNIQUE`,
	`CREATE CONSTRAINT ksa_sig_unique IF NOT EXISTS
	 FOR (k:KSA) REQUIRE k.content_sig IS UNIQUE`,
	`CREATE CONSTRAINT taxonomy_id_unique IF NOT EXISTS
	 FOR (t:TaxonomySkill) REQUIRE t.taxonomy_id IS UNIQUE`,
	`CREATE CONSTRAINT sourcedoc_title_unique IF NOT EXISTS
	 FOR (s:SourceDoc) REQUIRE s.title IS UNIQUE`,
}

const (
	MergeJobCodeQuery = `
		MERGE (j:JobCode {code: $code})
		ON CREATE SET j.created_at = $now
		SET j.title = $title,
			j.updated_at = $now
		RETURN j.code AS code
	`

	MergeSourceDocQuery = `
		MERGE (d:SourceDoc {title: $title})
		ON CREATE SET d.created_at = $now
		RETURN d.title AS title
	`

	// Identity is the signature; text/type/source/confidence refresh to the
	// current run's winner, first_seen never moves.
	MergeItemQuery = `
		MERGE (k:KSA {content_sig: $content_sig})
		ON CREATE SET k.first_seen = $now
		SET k.text = $text,
			k.type = $item_type,
			k.source = $source,
			k.confidence = $confidence,
			k.last_seen = $now
		RETURN k.content_sig AS content_sig
	`

	MergeRequiresQuery = `
		MATCH (j:JobCode {code: $code})
		MATCH (k:KSA {content_sig: $content_sig})
		MERGE (j)-[r:REQUIRES]->(k)
		ON CREATE SET r.first_seen = $now
		SET r.type = $item_type,
			r.confidence = $confidence,
			r.last_seen = $now
		RETURN k.content_sig AS content_sig
	`

	MergeExtractedFromQuery = `
		MATCH (k:KSA {content_sig: $content_sig})
		MATCH (d:SourceDoc {title: $title})
		MERGE (k)-[e:EXTRACTED_FROM]->(d)
		ON CREATE SET e.evidence = $evidence,
			e.created_at = $now
		RETURN k.content_sig AS content_sig
	`

	MergeAlignmentQuery = `
		MERGE (t:TaxonomySkill {taxonomy_id: $taxonomy_id})
		ON CREATE SET t.label = $text,
			t.created_at = $now
		WITH t
		MATCH (k:KSA {content_sig: $content_sig})
		MERGE (k)-[a:ALIGNS_TO]->(t)
		ON CREATE SET a.score = $confidence,
			a.created_at = $now
		RETURN t.taxonomy_id AS taxonomy_id
	`
)
