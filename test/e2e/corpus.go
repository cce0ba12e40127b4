// Package e2e verifies retrieval quality end to end over a generated
// multi-source corpus. Every passage carries a signature phrase that appears
// nowhere else in the corpus, so each query case can pin down exactly which
// chunk the engine must surface.
package e2e

import (
	"fmt"
	"strings"

	"github.com/hyperjump/shirabe/internal/models"
)

// QueryCase pairs a realistic query with the chunk ids that must appear in
// the retrieval results.
type QueryCase struct {
	Query            string
	ExpectedChunkIDs []string
	Description      string
}

// Corpus is a generated chunk set plus the query cases that probe it.
type Corpus struct {
	Chunks     []*models.Chunk
	QueryCases []QueryCase
}

type passage struct {
	source  string
	doc     string
	manual  string
	chapter string
	jur     string
	state   string
	title   string
	text    string
}

// passages covers all three source kinds with content whose signature phrase
// is repeated inside the text, so both the keyword and semantic paths have a
// strong signal to latch onto.
var passages = []passage{
	// Manual chapters.
	{
		source: "iom", doc: "100-04-ch01", manual: "100-04", chapter: "1",
		title: "Timely filing of claims",
		text: "Medicare requires timely filing of claims within one calendar year of the date of service. " +
			"Claims received after the timely filing period closes are denied, and the denial cannot be appealed on the merits of the service.",
	},
	{
		source: "iom", doc: "100-02-ch15", manual: "100-02", chapter: "15",
		title: "Cardiac rehabilitation programs",
		text: "Medicare covers cardiac rehabilitation programs following acute myocardial infarction, coronary artery bypass surgery, or heart valve repair. " +
			"Each cardiac rehabilitation session requires a physician immediately available and accessible for medical consultation.",
	},
	{
		source: "iom", doc: "100-02-ch10", manual: "100-02", chapter: "10",
		title: "Ambulance services",
		text: "Medicare pays for ambulance transport only when transportation by any other means would endanger the beneficiary's health. " +
			"Air ambulance transport additionally requires that ground transport be contraindicated by distance or terrain.",
	},
	{
		source: "iom", doc: "100-02-ch09", manual: "100-02", chapter: "9",
		title: "Hospice election",
		text: "Filing a hospice election statement waives standard Medicare benefits for treatment of the terminal illness. " +
			"The hospice election continues through successive benefit periods unless the beneficiary revokes it in writing.",
	},
	{
		source: "iom", doc: "100-02-ch08", manual: "100-02", chapter: "8",
		title: "Skilled nursing facility coverage",
		text: "Coverage in a skilled nursing facility requires a qualifying inpatient hospital stay of at least three consecutive days. " +
			"The skilled nursing facility benefit extends up to one hundred days per benefit period, with coinsurance after day twenty.",
	},
	{
		source: "iom", doc: "100-02-ch07", manual: "100-02", chapter: "7",
		title: "Home health and homebound status",
		text: "Home health services require that the beneficiary have homebound status under the care of a physician. " +
			"Homebound status exists when leaving home is medically contraindicated or requires a considerable and taxing effort.",
	},
	{
		source: "iom", doc: "100-02-ch06", manual: "100-02", chapter: "6",
		title: "Durable medical equipment",
		text: "Items of durable medical equipment must withstand repeated use and be appropriate for use in the home. " +
			"Capped rental items of durable medical equipment convert to beneficiary ownership after thirteen months of continuous use.",
	},
	{
		source: "iom", doc: "100-04-ch05", manual: "100-04", chapter: "5",
		title: "Outpatient therapy threshold",
		text: "Outpatient therapy services above the annual therapy threshold require the KX modifier attesting to medical necessity. " +
			"The therapy threshold combines physical therapy and speech-language pathology into a single amount.",
	},
	{
		source: "iom", doc: "100-04-ch12", manual: "100-04", chapter: "12",
		title: "Telehealth services",
		text: "Payment for a telehealth service requires an interactive telecommunications system and an eligible telehealth originating site. " +
			"The telehealth originating site bills a facility fee under code Q3014.",
	},
	{
		source: "iom", doc: "100-04-ch18", manual: "100-04", chapter: "18",
		title: "Annual wellness visit",
		text: "The annual wellness visit includes a health risk assessment and a personalized prevention plan. " +
			"Medicare covers one annual wellness visit every twelve months, and it is distinct from the initial preventive physical examination.",
	},
	{
		source: "iom", doc: "100-04-ch29", manual: "100-04", chapter: "29",
		title: "Redetermination requests",
		text: "A redetermination is the first level of appeal and must be requested within one hundred twenty days of the initial determination. " +
			"The Medicare administrative contractor that issued the determination decides the redetermination.",
	},
	{
		source: "iom", doc: "100-05-ch03", manual: "100-05", chapter: "3",
		title: "Medicare Secondary Payer",
		text: "Under the Medicare Secondary Payer provisions, Medicare pays second when a group health plan covers the beneficiary through current employment. " +
			"Providers collect Medicare Secondary Payer information at intake and report it on the claim.",
	},

	// Coverage determinations.
	{
		source: "mcd", doc: "L35021", jur: "JH", state: "TX",
		title: "Hyperbaric oxygen therapy",
		text: "This determination covers hyperbaric oxygen therapy for diabetic wounds of the lower extremities at Wagner grade three or higher. " +
			"Candidates for hyperbaric oxygen therapy must have failed a standard wound therapy course of at least thirty days.",
	},
	{
		source: "mcd", doc: "L37228", jur: "JL", state: "PA",
		title: "Wound debridement services",
		text: "Surgical wound debridement is covered when devitalized tissue is documented in the wound bed. " +
			"More than five wound debridement services per wound require records establishing continued medical necessity.",
	},
	{
		source: "mcd", doc: "L34221", jur: "JN", state: "FL",
		title: "MRI of the lumbar spine",
		text: "A lumbar spine MRI is reasonable and necessary for progressive neurological deficit or suspected cauda equina syndrome. " +
			"A lumbar spine MRI for uncomplicated acute low back pain within the first six weeks of symptoms is not covered.",
	},
	{
		source: "mcd", doc: "L38429", jur: "JH", state: "TX",
		title: "Intensive cardiac rehabilitation",
		text: "An intensive cardiac rehabilitation program must be furnished in a physician office or hospital outpatient setting. " +
			"Intensive cardiac rehabilitation is limited to seventy-two one-hour sessions delivered over eighteen weeks.",
	},
	{
		source: "mcd", doc: "L33821", jur: "JL", state: "NJ",
		title: "Negative pressure wound therapy",
		text: "Pumps for negative pressure wound therapy are covered for stage three or stage four pressure ulcers. " +
			"Continuing negative pressure wound therapy beyond four months requires documented improvement in wound dimensions.",
	},
	{
		source: "mcd", doc: "L38004", jur: "JH", state: "OK",
		title: "Repetitive non-emergent ambulance transport",
		text: "Repetitive scheduled non-emergent ambulance transport requires prior authorization before the fourth round trip. " +
			"Claims for repetitive non-emergent ambulance transport without an affirmed prior authorization are stopped for prepayment review.",
	},
	{
		source: "mcd", doc: "L33822", jur: "JN", state: "FL",
		title: "Continuous glucose monitors",
		text: "A continuous glucose monitor is covered for beneficiaries treated with intensive insulin therapy who meet testing frequency criteria. " +
			"Supplies for a continuous glucose monitor are billed monthly under code K0553.",
	},
	{
		source: "mcd", doc: "L39015", jur: "JL", state: "MD",
		title: "Epidural steroid injections",
		text: "An epidural steroid injection must be performed under fluoroscopic or computed tomography guidance. " +
			"Coverage of epidural steroid injection sessions is limited to four per spinal region in a rolling twelve months.",
	},
	{
		source: "mcd", doc: "L36902", jur: "JM", state: "GA",
		title: "Attended polysomnography",
		text: "Facility-based polysomnography is covered when home sleep testing is contraindicated by comorbid conditions. " +
			"Attended polysomnography requires recording of at least six hours with a technologist present throughout.",
	},
	{
		source: "mcd", doc: "L38995", jur: "JM", state: "TN",
		title: "Cataract extraction",
		text: "Coverage of cataract extraction with intraocular lens insertion requires corrected visual acuity of 20/50 or worse. " +
			"A cataract extraction performed for refractive purposes alone is not reasonable and necessary.",
	},
	{
		source: "mcd", doc: "L36807", jur: "JE", state: "CA",
		title: "Molecular pathology testing",
		text: "This determination covers molecular pathology testing when the result directly guides the treatment plan. " +
			"Claims for molecular pathology testing ordered as a broad screening panel are denied as not reasonable and necessary.",
	},
	{
		source: "mcd", doc: "L33789", jur: "JJ", state: "SC",
		title: "Power mobility devices",
		text: "A power mobility device is covered when a mobility limitation prevents completion of activities of daily living in the home. " +
			"Every power mobility device claim requires a face-to-face mobility examination by the treating practitioner.",
	},

	// Code reference entries.
	{
		source: "codes", doc: "hcpcs-s",
		title: "S9472",
		text: "HCPCS S9472 describes a cardiac rehabilitation program furnished by a non-physician provider, per diem. " +
			"S9472 is not payable under the Medicare physician fee schedule.",
	},
	{
		source: "codes", doc: "hcpcs-a",
		title: "A0428",
		text: "HCPCS A0428 describes basic life support ambulance service for a non-emergency transport. " +
			"A0428 requires origin and destination modifiers identifying both ends of the trip.",
	},
	{
		source: "codes", doc: "hcpcs-e",
		title: "E0601",
		text: "HCPCS E0601 describes a continuous positive airway pressure device. " +
			"Rental of E0601 requires a positive diagnostic sleep test and a compliance re-evaluation between the thirty-first and ninety-first day.",
	},
	{
		source: "codes", doc: "hcpcs-g",
		title: "G0121",
		text: "HCPCS G0121 describes a screening colonoscopy for an individual not at high risk of colorectal cancer. " +
			"G0121 is covered once every one hundred twenty months after a negative screening.",
	},
	{
		source: "codes", doc: "cpt-97xxx",
		title: "97110",
		text: "CPT 97110 describes therapeutic exercises to develop strength, endurance, range of motion, and flexibility. " +
			"Code 97110 is billed in fifteen-minute units under the therapy plan of care.",
	},
	{
		source: "codes", doc: "icd10-i",
		title: "I21.9",
		text: "ICD-10-CM I21.9 describes an acute myocardial infarction, unspecified. " +
			"A claim with I21.9 supports eligibility for a cardiac rehabilitation referral.",
	},
	{
		source: "codes", doc: "icd10-e",
		title: "E11.9",
		text: "ICD-10-CM E11.9 describes type 2 diabetes mellitus without complications. " +
			"E11.9 alone does not establish medical necessity for glucose monitoring supplies.",
	},
	{
		source: "codes", doc: "hcpcs-k",
		title: "K0823",
		text: "HCPCS K0823 describes a group two standard power wheelchair with a captain's chair. " +
			"K0823 claims require that the power wheelchair be usable within the beneficiary's home.",
	},
	{
		source: "codes", doc: "hcpcs-g",
		title: "G0283",
		text: "HCPCS G0283 describes unattended electrical stimulation for indications other than wound care. " +
			"G0283 is bundled into the therapy plan of care and is not separately payable with an evaluation.",
	},
	{
		source: "codes", doc: "cpt-99xxx",
		title: "99213",
		text: "CPT 99213 describes an office visit for an established patient with a low level of medical decision making. " +
			"Code 99213 typically represents twenty to twenty-nine minutes of total time on the date of the encounter.",
	},
	{
		source: "codes", doc: "hcpcs-l",
		title: "L1833",
		text: "HCPCS L1833 describes an adjustable prefabricated knee orthosis supplied off the shelf. " +
			"L1833 requires a diagnosis supporting instability of the knee joint.",
	},
	{
		source: "codes", doc: "hcpcs-q",
		title: "Q3014",
		text: "HCPCS Q3014 describes the telehealth originating site facility fee. " +
			"Q3014 is billed by the facility where the beneficiary is located during the telehealth service.",
	},
}

// queryPhrases drive the generated query cases. Each phrase must appear
// verbatim in at least one passage.
var queryPhrases = []string{
	"timely filing",
	"cardiac rehabilitation programs",
	"ambulance transport",
	"hospice election",
	"skilled nursing facility",
	"homebound status",
	"durable medical equipment",
	"therapy threshold",
	"telehealth originating site",
	"annual wellness visit",
	"redetermination",
	"Medicare Secondary Payer",
	"hyperbaric oxygen therapy",
	"wound debridement",
	"lumbar spine MRI",
	"intensive cardiac rehabilitation",
	"negative pressure wound therapy",
	"non-emergent ambulance transport",
	"continuous glucose monitor",
	"epidural steroid injection",
	"polysomnography",
	"cataract extraction",
	"molecular pathology testing",
	"power mobility device",
	"S9472",
	"A0428",
	"E0601",
	"97110",
	"power wheelchair",
}

// BuildCorpus generates n chunks by cycling through the passage table, then
// derives the query cases from the chunks that were actually produced.
func BuildCorpus(n int) *Corpus {
	chunks := buildChunks(n)
	return &Corpus{
		Chunks:     chunks,
		QueryCases: buildQueryCases(chunks),
	}
}

func buildChunks(n int) []*models.Chunk {
	chunks := make([]*models.Chunk, 0, n)
	for i := 0; i < n; i++ {
		p := passages[i%len(passages)]
		title := p.title
		if i >= len(passages) {
			// Repeated passages get distinct titles so the corpus has no
			// fully identical documents.
			title = fmt.Sprintf("%s (revision %d)", p.title, i/len(passages)+1)
		}
		chunks = append(chunks, &models.Chunk{
			ID:         fmt.Sprintf("e2e-%s-%03d", p.source, i+1),
			Text:       p.text,
			SourceKind: p.source,
			Metadata: models.ChunkMetadata{
				DocID:        p.doc,
				Manual:       p.manual,
				Chapter:      p.chapter,
				Jurisdiction: p.jur,
				State:        p.state,
				Title:        title,
			},
		})
	}
	return chunks
}

// buildQueryCases binds each query phrase to the first chunk containing it.
// Later cycles of the same passage also match the phrase, but the earliest id
// is the one the engine must surface at minimum.
func buildQueryCases(chunks []*models.Chunk) []QueryCase {
	cases := make([]QueryCase, 0, len(queryPhrases))
	for _, phrase := range queryPhrases {
		for _, c := range chunks {
			if containsPhrase(c, phrase) {
				cases = append(cases, QueryCase{
					Query:            phrase,
					ExpectedChunkIDs: []string{c.ID},
					Description:      fmt.Sprintf("%q finds %s", phrase, c.ID),
				})
				break
			}
		}
	}
	return cases
}

func containsPhrase(c *models.Chunk, phrase string) bool {
	return strings.Contains(c.Text, phrase) || strings.Contains(c.Metadata.Title, phrase)
}
