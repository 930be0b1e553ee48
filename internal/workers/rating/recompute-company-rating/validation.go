package recomputecompanyrating

import "safety-rating/internal/common/validation"

var inputSchema = validation.MustCompile(`{
  "type": "object",
  "required": ["companyId", "reason"],
  "properties": {
    "companyId": {"type": "string", "minLength": 1, "maxLength": 128},
    "reason": {"type": "string", "minLength": 1, "maxLength": 500},
    "category": {
      "type": "string",
      "enum": ["overall", "improvement", "harnessInspection", "projectDocumentation", "companyDocumentation", "employeeDocReview"]
    },
    "requestId": {"type": "string", "maxLength": 128}
  }
}`)
