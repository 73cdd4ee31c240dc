package stencil

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateTemplateValid(t *testing.T) {
	result, err := ValidateTemplate(ValidateTemplateInput{
		Template:           createSimpleODTBytes(loopBody()),
		TemplateRevisionID: "rev-1",
	})
	require.NoError(t, err)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Issues)
	assert.Equal(t, 3, result.Summary.CheckedDirectives)
	assert.Equal(t, "rev-1", result.Metadata.TemplateRevisionID)
	assert.Equal(t, validationParserVersion, result.Metadata.ParserVersion)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, result.Metadata.DocumentHash)
	assert.NoError(t, result.Err())
}

func TestValidateTemplateCollectsAllIssues(t *testing.T) {
	body := para(link(`for "item in items"`)) +
		para(userField("a +")) +
		para(link("/if")) +
		para(link(`for="x in xs"`))

	result, err := ValidateTemplate(ValidateTemplateInput{Template: createSimpleODTBytes(body)})
	require.NoError(t, err)
	require.False(t, result.Valid)

	codes := make([]StencilIssueCode, 0, len(result.Issues))
	for _, issue := range result.Issues {
		codes = append(codes, issue.Code)
		assert.Equal(t, contentPart, issue.Token.Location.Part)
		assert.Equal(t, IssueSeverityError, issue.Severity)
	}
	assert.Equal(t, []StencilIssueCode{
		IssueCodeSyntaxError,
		IssueCodeUnsupportedExpr,
		IssueCodeControlBlockMismatch,
		IssueCodeControlBlockMismatch,
	}, codes)

	assert.Equal(t, "iss_001", result.Issues[0].ID)
	assert.Contains(t, result.Issues[0].Message, `Missing '=' in instruction 'for "item in items"'`)
	assert.Equal(t, "a +", result.Issues[1].Token.Expression)
	assert.Contains(t, result.Issues[2].Message, "No open instruction for /if")
	assert.Contains(t, result.Issues[3].Message, `No closing instruction for 'for="x in xs"'`)

	err = result.Err()
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 4)
	assert.True(t, IsValidationIssue(err))
}

func TestValidateTemplateSameScope(t *testing.T) {
	body := para(link(`if="x"`) + link("/if"))

	result, err := ValidateTemplate(ValidateTemplateInput{Template: createSimpleODTBytes(body)})
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueCodeControlBlockMismatch, result.Issues[0].Code)
	assert.Contains(t, result.Issues[0].Message, "are in the same text:p")
}

func TestValidateTemplateLinkMismatch(t *testing.T) {
	body := para(`<text:a xlink:type="simple" xlink:href="py3o://a">py3o://b</text:a>`)

	result, err := ValidateTemplate(ValidateTemplateInput{Template: createSimpleODTBytes(body)})
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, IssueCodeInvalidDirective, result.Issues[0].Code)
	assert.Equal(t, "a", result.Issues[0].Token.Raw)
}

func TestValidateTemplateMaxIssues(t *testing.T) {
	body := para(link("/for")) + para(link("/for")) + para(link("/for"))

	result, err := ValidateTemplate(ValidateTemplateInput{Template: createSimpleODTBytes(body), MaxIssues: 2})
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.True(t, result.IssuesTruncated)
	assert.Len(t, result.Issues, 2)
	assert.Equal(t, 3, result.Summary.ErrorCount)
	assert.Equal(t, 2, result.Summary.ReturnedIssueCount)
}

func TestValidateTemplateInputErrors(t *testing.T) {
	_, err := ValidateTemplate(ValidateTemplateInput{})
	assert.Error(t, err)

	_, err = ValidateTemplate(ValidateTemplateInput{Template: createSimpleODTBytes(""), MaxIssues: -1})
	assert.Error(t, err)

	_, err = ValidateTemplate(ValidateTemplateInput{Template: []byte("nope")})
	require.Error(t, err)
	assert.True(t, IsDocumentError(err))
}

func TestExtractReferences(t *testing.T) {
	body := para(link(`for="item in order.items"`)) +
		para(userField("format_number(item.price, 2)")) +
		para(imageFrame("py3o.image(item.photo)", "1cm", "1cm")) +
		para(link("/for")) +
		para(imageFrame("py3o.staticimage.logo", "1cm", "1cm"))

	result, err := ExtractReferences(ExtractReferencesInput{Template: createSimpleODTBytes(body)})
	require.NoError(t, err)

	type ref struct {
		kind TokenKind
		expr string
	}
	var got []ref
	for _, r := range result.References {
		got = append(got, ref{r.Kind, r.Expression})
		assert.Equal(t, contentPart, r.Location.Part)
		assert.NotEmpty(t, r.Location.AnchorID)
	}
	assert.Equal(t, []ref{
		{TokenKindControl, "item in order.items"},
		{TokenKindVariable, "order.items"},
		{TokenKindFunction, "format_number"},
		{TokenKindVariable, "item.price"},
		{TokenKindVariable, "item.photo"},
		{TokenKindImage, "logo"},
	}, got)
}

func TestExtractReferencesIndexPaths(t *testing.T) {
	body := para(userField(`rows[0].cells["a"]`)) + para(userField("rows[i]"))

	result, err := ExtractReferences(ExtractReferencesInput{Template: createSimpleODTBytes(body)})
	require.NoError(t, err)

	var exprs []string
	for _, r := range result.References {
		exprs = append(exprs, r.Expression)
	}
	assert.Equal(t, []string{`rows[0].cells["a"]`, "rows", "i"}, exprs)
}
