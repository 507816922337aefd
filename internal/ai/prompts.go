package ai

// --- Structured analysis prompts ---

const analysisSystemPrompt = "你是一位资深的工程类标书审查专家。你的任务是对招标文件进行结构化解析，输出完整、准确、可核查的审查报告。准确性和信息完整性最为重要。"

const analysisPromptHeader = `请仔细分析以下招标文件内容，并严格按照下面七个大类输出结构化解析报告。每个大类使用二级标题（## 开头），逐条列出原文依据：

## 一、基本信息
项目名称、招标人、建设规模、预算金额、工期、关键时间节点（发售、答疑、递交、开标）。

## 二、资质要求
企业资质等级、人员资格（项目经理、技术负责人等）、业绩要求、财务要求。

## 三、评审要求
评标办法（综合评估法/经评审的最低价法）、各评分项及权重、加减分条款。

## 四、投标文件要求
组成部分、份数、装订、密封、签字盖章要求。

## 五、否决投标条件
所有导致废标或否决投标的情形，逐条列出并注明出处。

## 六、需要提交的证明材料
资质证明、业绩证明、保证金凭证等全部清单。

## 七、符合性审查要点
形式审查与响应性审查的具体核对项。

要求：只依据文件原文，不得编造；缺失的信息标注"招标文件未载明"。

=== 招标文件内容 ===
`

const mergePromptHeader = `以下是同一招标文件分批解析得到的多份部分报告。请将它们合并为一份完整的结构化解析报告，仍然严格按照七个大类组织（基本信息、资质要求、评审要求、投标文件要求、否决投标条件、需要提交的证明材料、符合性审查要点），去除重复条目，保留全部原文依据。缺失的信息标注"招标文件未载明"。
`

// --- Evaluation criteria extraction ---

const criteriaSystemPrompt = "你是一位评标专家。你的任务是从招标文件解析报告中提取评审标准，重点关注施工组织设计（技术标）部分的评分因素。"

const criteriaPromptHeader = `以下是招标文件的结构化解析报告。请从中提取完整的评审标准，重点包括：

1. 技术标（施工组织设计）各评分项、分值与评分细则
2. 每个评分项对应的编写要求与得分要点
3. 涉及的强制性要求与否决条款

输出为条理清晰的评审标准文档，供后续编写技术标使用。

=== 解析报告 ===
`

// --- Technical proposal outline ---

const outlineSystemPrompt = "你是一位投标文件编写专家。你的任务是根据评审标准设计技术标目录结构。你必须输出合法的 JSON，不得包含任何 JSON 之外的文字。"

const outlinePromptTemplate = `根据以下项目需求和评审标准，设计一份技术标（施工组织设计）的目录结构。

要求：
1. 目录必须覆盖评审标准中的全部评分项。
2. 输出严格的 JSON，格式如下（不要输出任何其他文字、不要使用代码块包裹）：
{
  "outline": [
    {
      "title": "1. 章节标题",
      "children": [
        {"title": "1.1 小节标题", "word_count": 1500, "description": "本节需覆盖的评分要点"}
      ]
    }
  ]
}
3. 每个可编写的末级章节必须带 word_count（建议字数）和 description（编写要求）。

=== 项目需求 ===
%s

=== 评审标准 ===
%s`

// --- Per-section generation ---

const sectionSystemPrompt = "你是一位经验丰富的投标文件编写专家，擅长编写工程类技术标。内容必须专业、具体、完全响应评审标准。"

const sectionPromptTemplate = `请编写技术标章节"%s"的正文内容。

编写要求：
1. 目标字数约 %d 字。
2. 本章节编写要求：%s
3. 内容必须针对本项目，逐条响应相关评分要点，不得套用空泛模板。
4. 使用 Markdown 格式，以 "## %s" 作为章节标题开头。

=== 项目信息 ===
%s

=== 评审标准 ===
%s`
